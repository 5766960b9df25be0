package logger

import (
	"github.com/sirupsen/logrus"
)

// Log общий структурированный логгер приложения. Готов к использованию
// до Init — тогда действуют уровень и формат logrus по умолчанию.
var Log = logrus.New()

// Init устанавливает уровень логирования и JSON-формат записей.
func Init(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter переключает записи на текстовый формат для разработки.
func SetTextFormatter() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
