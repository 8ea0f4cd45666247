package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// mustGet reads a flag through one of the typed pflag getters and panics if the flag doesn't
// exist. Flags are defined in init(), so a lookup error is a programming bug.
func mustGet[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustGet(name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustGet(name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustGet(name, cmd.Flags().GetString)
}

func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	return mustGet(name, cmd.Flags().GetStringSlice)
}

// parseIDArg parses a positional image or person id.
func parseIDArg(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q: must be a positive integer", kind, arg)
	}
	return id, nil
}
