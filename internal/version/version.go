// Package version хранит данные сборки, заполняемые через -ldflags:
//
//	-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build: сведения о текущем бинарнике.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает данные сборки.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// IsRelease сообщает, собран ли бинарник с явной версией.
func (b Build) IsRelease() bool {
	return b.Version != "" && b.Version != "dev"
}

func (b Build) String() string {
	return fmt.Sprintf("storefront %s (commit %s, built %s)", b.Version, b.Commit, b.Date)
}

// Fields: поля для стартовой записи в лог.
func (b Build) Fields() log.Fields {
	return log.Fields{"version": b.Version, "commit": b.Commit, "build_date": b.Date}
}
