package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/jmylchreest/epgnow/internal/config"
	"github.com/jmylchreest/epgnow/internal/observability"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format: built-in defaults
overlaid with the config file and environment. Redirect the output to a file
to create a configuration template:

  epgnow config dump > config.yaml

Environment variables use the EPGNOW_ prefix and underscores for nesting,
e.g. epg.url -> EPGNOW_EPG_URL. TIMEZONE_OFFSET sets epg.display_offset.`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags, with
// durations and byte sizes in their human readable form. Credentials in
// fields tagged secret are masked.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}
		if fieldType.Tag.Get("masq") == "secret" && field.Kind() == reflect.String {
			result[key] = observability.RedactString(field.String())
			continue
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = fv.String()
		case config.ByteSize:
			result[key] = fv.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(fv)
			} else {
				result[key] = fv
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	data, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# epgnow configuration")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# Duration format: 30s, 5m, 24h")
	fmt.Fprintln(out, "# Size format: 512MB, 1GB, 1GiB")
	fmt.Fprintln(out, "")
	fmt.Fprint(out, string(data))
	return nil
}
