package jsonschema

import (
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/go-i18n"
)

//go:embed locales/*.json
var localesFS embed.FS

// I18n returns an initialized internationalization bundle with the engine's
// embedded locale files, for callers that want ValidationError messages in
// something other than the default English template rendering.
func I18n() (*i18n.I18n, error) {
	bundle := i18n.NewBundle(
		i18n.WithDefaultLocale("en"),
		i18n.WithLocales("en", "zh-Hans"),
	)

	err := bundle.LoadFS(localesFS, "locales/*.json")

	return bundle, err
}

// replaceParams substitutes "{param}" placeholders in msg with values from
// params, mirroring the template rendering go-i18n applies to a locale
// string. Used as the no-localizer fallback in ValidationError.Error() so a
// bare %v / fmt.Println on an error still reads naturally.
func replaceParams(msg string, params map[string]any) string {
	if len(params) == 0 {
		return msg
	}
	var b strings.Builder
	b.Grow(len(msg))
	for i := 0; i < len(msg); i++ {
		if msg[i] != '{' {
			b.WriteByte(msg[i])
			continue
		}
		end := strings.IndexByte(msg[i:], '}')
		if end < 0 {
			b.WriteString(msg[i:])
			break
		}
		key := msg[i+1 : i+end]
		if v, ok := params[key]; ok {
			b.WriteString(formatParam(v))
			i += end
			continue
		}
		b.WriteByte(msg[i])
	}
	return b.String()
}

// formatParam renders a single template value the way the VM's error
// builders populate Params: numbers without the Go %v float noise.
func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
