package archive

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/sanitize"
)

const dateLayout = "20060102"

// IntermediateName is "{yyyyMMdd}-{clean(description)}.{ext}".
func IntermediateName(description string, date time.Time, ext string) string {
	return withExt(date.Format(dateLayout)+"-"+sanitize.Clean(description), ext)
}

// FinalName is "{seq}-{yyyyMMdd}-{clean(description)}.{ext}".
func FinalName(seq int, description string, date time.Time, ext string) string {
	return withExt(strconv.Itoa(seq)+"-"+date.Format(dateLayout)+"-"+sanitize.Clean(description), ext)
}

// HistoryName is "{id}-{yyyyMMddHHmmssffffff}-{original}". The microsecond
// timestamp keeps names unique when many files are archived in one second.
func HistoryName(id int, at time.Time, original string) string {
	return fmt.Sprintf("%d-%s-%s", id, HistoryTimestamp(at), filepath.Base(original))
}

// HistoryTimestamp renders t as yyyyMMddHHmmss followed by six fractional digits.
func HistoryTimestamp(t time.Time) string {
	return t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}

// ErrorLogName is the sidecar written next to a failed-folder copy.
func ErrorLogName(archived string) string {
	return archived + ".error.log"
}

func withExt(stem, ext string) string {
	ext = constants.NormalizeExt(ext)
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}
