package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Cache   CacheConfig   `yaml:"cache"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

// StorageConfig выбирает backend хранилища аккаунтов.
// Backend: memory | flatfile | userfile | mongo.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	TokensFile string `yaml:"tokens_file"` // для flatfile
	DataDir    string `yaml:"data_dir"`    // для userfile
	Mongo      Mongo  `yaml:"mongo"`
}

type Mongo struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type AuthConfig struct {
	// JWTSecret — base64-кодированный ключ (минимум 32 байта).
	// Пустое значение: случайный ключ на время жизни процесса.
	JWTSecret string `yaml:"jwt_secret"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RedisAddr  string `yaml:"redis_addr"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "XP_REST_PORT", 8088)
}

// GetBackend возвращает backend хранилища: config -> env -> default
func (s *StorageConfig) GetBackend() string {
	if s.Backend != "" {
		return s.Backend
	}
	if env := os.Getenv("XP_STORAGE_BACKEND"); env != "" {
		return env
	}
	return "userfile"
}

// GetTokensFile возвращает путь к legacy-файлу токенов
func (s *StorageConfig) GetTokensFile() string {
	if s.TokensFile != "" {
		return s.TokensFile
	}
	if env := os.Getenv("XP_TOKENS_FILE"); env != "" {
		return env
	}
	return "tokens.txt"
}

// GetDataDir возвращает каталог пользовательских документов
func (s *StorageConfig) GetDataDir() string {
	if s.DataDir != "" {
		return s.DataDir
	}
	if env := os.Getenv("XP_DATA_DIR"); env != "" {
		return env
	}
	return "data"
}

// GetURI возвращает Mongo URI: config -> env -> default
func (m *Mongo) GetURI() string {
	return getWithEnvFallback(m.URI, "MONGODB_URI", "mongodb://localhost:27017")
}

// GetDatabase возвращает имя базы данных
func (m *Mongo) GetDatabase() string {
	return getWithEnvFallback(m.Database, "MONGODB_DATABASE", "codxp_tokens")
}

// GetCollection возвращает имя коллекции пользователей
func (m *Mongo) GetCollection() string {
	return getWithEnvFallback(m.Collection, "MONGODB_USERS_COLLECTION", "users")
}

// GetJWTSecret возвращает секрет подписи токенов: config -> env -> ""
func (a *AuthConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("XP_JWT_SECRET")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// getWithEnvFallback возвращает строковое значение: config -> env -> default
func getWithEnvFallback(configVal, envVar, defaultVal string) string {
	if configVal != "" {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultVal
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV XP_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("XP_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
