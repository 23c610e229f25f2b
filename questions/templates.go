package questions

// DefaultTemplates is the built-in corpus seeded on start-up and by cmd/migrate.
var DefaultTemplates = []string{
	"What would {name} do with a million dollars?",
	"What is {name}'s secret talent?",
	"What would {name} bring to a desert island?",
	"What is {name}'s most controversial food opinion?",
	"What would {name}'s autobiography be called?",
	"What is the first thing {name} does in the morning?",
	"What would {name} be famous for in 20 years?",
	"What is {name}'s guilty pleasure TV show?",
	"What would {name} name their pet goldfish?",
	"What is {name} secretly afraid of?",
	"What would {name} order at a fancy restaurant?",
	"What song would {name} sing at karaoke?",
	"What is {name}'s dream job?",
	"What would {name} do on a free Saturday?",
	"What is the weirdest thing in {name}'s fridge?",
	"What would {name} say if they won an award?",
	"What is {name}'s worst habit?",
	"Which superpower would {name} choose?",
	"What would {name}'s catchphrase be?",
	"Where would {name} go on a dream vacation?",
	"What would {name} be arrested for?",
	"What is {name}'s most used emoji?",
	"What would {name} spend their last ten dollars on?",
	"What movie could {name} watch on repeat?",
	"What would {name} do during a zombie apocalypse?",
	"What is {name}'s go-to excuse for being late?",
	"What would {name} tweet at 3am?",
	"What is {name}'s hidden obsession?",
	"What would {name} be as a kitchen appliance?",
	"What would {name} never leave the house without?",
	"What is {name}'s ideal Sunday breakfast?",
	"What would {name} do if they were invisible for a day?",
	"What reality show would {name} win?",
	"What would {name} name their band?",
	"What is {name}'s most unpopular opinion?",
	"What would {name} put in a time capsule?",
	"What would {name} be doing right now if they weren't here?",
	"What historical figure would {name} have dinner with?",
	"What would {name} rename themselves?",
	"What is the last thing {name} googled?",
}
