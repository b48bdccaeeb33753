// internal/logger/config.go
package logger

type Config struct {
	LogFile    string // empty disables the JSON file output
	MaxSize    int    // мегабайты
	MaxAge     int    // дни
	MaxBackups int    // количество файлов
	Compress   bool   // сжимать ротированные файлы
	Debug      bool
	Color      bool // colored levels on the console
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
		Color:      true,
	}
}
