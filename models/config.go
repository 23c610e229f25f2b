package models

// Config 構造体はサーバー全体の設定情報を保持します。
type Config struct {
	Port           string   `json:"port"`
	DBHost         string   `json:"db_host"`
	DBPort         string   `json:"db_port"`
	DBUser         string   `json:"db_user"`
	DBPassword     string   `json:"db_password"`
	DBName         string   `json:"db_name"`
	DBSSLMode      string   `json:"db_sslmode"`
	RedisAddr      string   `json:"redis_addr"`
	RedisPassword  string   `json:"redis_password"`
	RedisDB        int      `json:"redis_db"`
	JWTSecret      string   `json:"jwt_secret"`
	RoomStore      string   `json:"room_store"`     // "redis" or "memory"
	QuestionStore  string   `json:"question_store"` // "postgres" or "static"
	AllowedOrigins []string `json:"allowed_origins"`
}
