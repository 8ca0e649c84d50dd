package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var sharedLogger = sync.OnceValue(func() *log.Logger {
	return log.New(os.Stdout, "", 0)
})

// Logger returns the process-wide JSON-line logger.
func Logger() *log.Logger { return sharedLogger() }

// LogEvent marshals entry as a single JSON line. An unserializable entry
// is reported in place rather than dropped silently.
func LogEvent(entry map[string]any) {
	line, err := json.Marshal(entry)
	if err != nil {
		Logger().Printf(`{"level":"error","msg":"log entry not serializable","error":%q}`, err.Error())
		return
	}
	Logger().Println(string(line))
}
