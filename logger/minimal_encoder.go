package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/spark/sym"
)

// Color palette constants
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// Gruvbox Dark color palette (warm, muted, easy on eyes)
type gruvboxColors struct {
	fg       string
	aqua     string
	orange   string
	yellow   string
	green    string
	blue     string
	red      string
	redBg    string
	yellowBg string
}

var gruvbox = gruvboxColors{
	fg:       "\x1b[38;5;223m", // Soft cream (#ebdbb2)
	aqua:     "\x1b[38;5;108m", // Muted cyan-green (#8ec07c)
	orange:   "\x1b[38;5;208m", // Warm orange (#fe8019)
	yellow:   "\x1b[38;5;214m", // Soft yellow (#fabd2f)
	green:    "\x1b[38;5;142m", // Muted green (#b8bb26)
	blue:     "\x1b[38;5;109m", // Soft blue (#83a598)
	red:      "\x1b[38;5;167m", // Warm red (#fb4934)
	redBg:    "\x1b[48;5;88m",  // Dark red background
	yellowBg: "\x1b[48;5;58m",  // Dark yellow background
}

// Mono palette for terminals where color is unwanted
var mono = gruvboxColors{}

// Current active theme (set by logger.Initialize from env)
var currentTheme = "gruvbox"

// SetTheme configures the color scheme for log output
func SetTheme(theme string) {
	if theme == "gruvbox" || theme == "mono" {
		currentTheme = theme
	}
}

func palette() gruvboxColors {
	if currentTheme == "mono" {
		return mono
	}
	return gruvbox
}

// colorizeSymbols highlights spark glyphs inside a message
func colorizeSymbols(text string) string {
	p := palette()
	if p.green == "" {
		return text
	}
	for glyph := range sym.Names {
		text = strings.ReplaceAll(text, glyph, p.green+glyph+colorReset)
	}
	return text
}

// minimalEncoder implements a calm, compact console encoder
// Format: "13:04:35  coach  Card posted  option=2"
type minimalEncoder struct {
	zapcore.Encoder // Embed a base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	// Base JSON encoder for field serialization (internal use only)
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	p := palette()
	final := buffer.NewPool().Get()

	// Time
	final.AppendString(p.aqua)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only show for WARN/ERROR with bold + background
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	// Component name (abbreviated) for visual grouping
	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(p.orange)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	// Message with highlighted glyphs
	final.AppendString("  ")
	final.AppendString(p.fg)
	final.AppendString(colorizeSymbols(ent.Message))
	final.AppendString(colorReset)

	// Fields: compact key=value pairs
	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(formatFields(fields))
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for WARN/ERROR
func levelColorString(level zapcore.Level) string {
	p := palette()
	switch level {
	case zapcore.WarnLevel:
		return colorBold + p.yellowBg + p.yellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + p.redBg + p.red + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + p.redBg + p.red + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens component names: coach.session -> c.session
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// fieldValue extracts the value from a zap field, handling common field types
func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.BoolType:
		if field.Integer == 1 {
			return "true"
		}
		return "false"
	case zapcore.Float64Type, zapcore.Float32Type:
		return fmt.Sprintf("%v", field.Interface)
	case zapcore.DurationType:
		return fmt.Sprintf("%dms", field.Integer/1e6)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// formatFields renders structured fields as dim key=value pairs.
// The symbol field is dropped here since it is already part of the message glyphs.
func formatFields(fields []zapcore.Field) string {
	p := palette()
	var pairs []string
	for _, field := range fields {
		if field.Key == FieldSymbol {
			continue
		}
		val := fieldValue(field)
		if val == "" {
			continue
		}
		if field.Key == FieldError {
			pairs = append(pairs, p.red+field.Key+"="+val+colorReset)
			continue
		}
		pairs = append(pairs, p.blue+field.Key+colorReset+"="+p.fg+val+colorReset)
	}
	return strings.Join(pairs, " ")
}
