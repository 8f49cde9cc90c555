// Package version хранит сведения о сборке, которые задаются через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает commit сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// UserAgent возвращает метку компонента витрины вида "name/version" для
// исходящих HTTP-запросов и заголовков Kafka.
func UserAgent(component string) string {
	if component == "" {
		component = "storefront"
	}
	return component + "/" + version
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
