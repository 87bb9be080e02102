package stdoutwriter

import (
	"encoding/json"

	"github.com/pterm/pterm"

	"github.com/bartossh/Paygate/logger"
)

// Logger writes log documents to the standard output, coloured by level.
type Logger struct{}

// Write satisfies io.Writer abstraction.
func (l Logger) Write(p []byte) (n int, err error) {
	var lg logger.Log
	if err := json.Unmarshal(p, &lg); err != nil {
		pterm.Println(string(p))
		return len(p), nil
	}
	prefix := pterm.Info
	switch lg.Level {
	case "debug":
		prefix = pterm.Debug
	case "warn":
		prefix = pterm.Warning
	case "error":
		prefix = pterm.Error
	case "fatal":
		prefix = *pterm.Fatal.WithFatal(false)
	}
	prefix.Printfln("%s [%s] %s", lg.CreatedAt.Format("2006-01-02 15:04:05.000"), lg.Service, lg.Msg)
	return len(p), nil
}
