package functions

import (
	"strings"
	"time"

	"github.com/kochj23/webmush/pkg/eval"
)

// ctime is the classic asctime layout softcode expects from time().
const ctime = "Mon Jan  2 15:04:05 2006"

func fnTime(_ *eval.Context, _ []string, buf *strings.Builder) {
	buf.WriteString(time.Now().Format(ctime))
}

func fnSecs(_ *eval.Context, _ []string, buf *strings.Builder) {
	writeInt(buf, int(time.Now().Unix()))
}

func fnConvsecs(_ *eval.Context, args []string, buf *strings.Builder) {
	buf.WriteString(time.Unix(int64(toInt(args[0])), 0).Format(ctime))
}

// convtime parses the asctime layout back to epoch seconds.
func fnConvtime(_ *eval.Context, args []string, buf *strings.Builder) {
	t, err := time.ParseInLocation(ctime, strings.TrimSpace(args[0]), time.Local)
	if err != nil {
		buf.WriteString("#-1 INVALID TIME")
		return
	}
	writeInt(buf, int(t.Unix()))
}

// timefmt(format[, secs]) uses strftime-style directives.
func fnTimefmt(_ *eval.Context, args []string, buf *strings.Builder) {
	t := time.Now()
	if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		t = time.Unix(int64(toInt(args[1])), 0)
	}
	buf.WriteString(strftime(args[0], t))
}

// timestring(secs) renders a duration as "1d 02:03:04".
func fnTimestring(_ *eval.Context, args []string, buf *strings.Builder) {
	secs := toInt(args[0])
	if secs < 0 {
		secs = 0
	}
	days := secs / 86400
	secs %= 86400
	if days > 0 {
		writeInt(buf, days)
		buf.WriteString("d ")
	}
	pad2 := func(v int) {
		if v < 10 {
			buf.WriteByte('0')
		}
		writeInt(buf, v)
	}
	pad2(secs / 3600)
	buf.WriteByte(':')
	pad2(secs % 3600 / 60)
	buf.WriteByte(':')
	pad2(secs % 60)
}

func fnStarttime(ctx *eval.Context, _ []string, buf *strings.Builder) {
	if ctx.Info == nil {
		return
	}
	buf.WriteString(ctx.Info.StartTime().Format(ctime))
}

func fnUptime(ctx *eval.Context, _ []string, buf *strings.Builder) {
	if ctx.Info == nil {
		buf.WriteString("0")
		return
	}
	writeInt(buf, int(time.Since(ctx.Info.StartTime()).Seconds()))
}

// strftime covers the directives softcode historically uses; unknown
// directives pass through literally.
func strftime(format string, t time.Time) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			b.WriteString(t.Format("2006"))
		case 'y':
			b.WriteString(t.Format("06"))
		case 'm':
			b.WriteString(t.Format("01"))
		case 'd':
			b.WriteString(t.Format("02"))
		case 'H':
			b.WriteString(t.Format("15"))
		case 'M':
			b.WriteString(t.Format("04"))
		case 'S':
			b.WriteString(t.Format("05"))
		case 'a':
			b.WriteString(t.Format("Mon"))
		case 'A':
			b.WriteString(t.Format("Monday"))
		case 'b':
			b.WriteString(t.Format("Jan"))
		case 'B':
			b.WriteString(t.Format("January"))
		case 'p':
			b.WriteString(t.Format("PM"))
		case 'Z':
			b.WriteString(t.Format("MST"))
		case 'j':
			d := t.YearDay()
			if d < 100 {
				b.WriteByte('0')
			}
			if d < 10 {
				b.WriteByte('0')
			}
			b.WriteString(itoa(d))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

func registerTimeFns(r *eval.Registry) {
	r.Register("time", fnTime, 0, 0)
	r.Register("secs", fnSecs, 0, 0)
	r.Register("convsecs", fnConvsecs, 1, 0)
	r.Register("convtime", fnConvtime, 1, 0)
	r.Register("timefmt", fnTimefmt, -1, 0)
	r.Register("timestring", fnTimestring, 1, 0)
	r.Register("starttime", fnStarttime, 0, 0)
	r.Register("uptime", fnUptime, 0, 0)
}
