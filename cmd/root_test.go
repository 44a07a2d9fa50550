package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/app"
	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// writeConfig saves a config with a temp database, a static location and
// permission already granted.
func writeConfig(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	settings := conf.Default()
	settings.Database = conf.DatabaseSettings{Type: "sqlite", Path: filepath.Join(dir, "trolltrack.db")}
	settings.Backup.Dir = filepath.Join(dir, "backups")
	settings.Location.Source = conf.LocationSourceStatic
	settings.Location.Permission = conf.PermissionGranted
	settings.Weather.APIKey = ""
	settings.SetConfigPath(filepath.Join(dir, "config.yaml"))
	require.NoError(t, settings.Save())
	return settings
}

func runCLI(t *testing.T, settings *conf.Settings, stdin string, args ...string) (string, error) {
	t.Helper()
	loader := app.NewLoader(app.WithLogger(logger.NewDiscardLogger()))
	t.Cleanup(loader.Close)

	root := RootCommand(loader)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", settings.ConfigPath()}, args...))
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	settings := writeConfig(t)
	out, err := runCLI(t, settings, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "trolltrack "), out)
}

func TestCatchCommands(t *testing.T) {
	settings := writeConfig(t)

	out, err := runCLI(t, settings, "", "catch", "log", "walleye", "--weight", "3.5", "--length", "22", "--json")
	require.NoError(t, err)
	var logged datastore.CatchRecord
	require.NoError(t, json.Unmarshal([]byte(out), &logged), out)
	require.NotEmpty(t, logged.ID)
	assert.InDelta(t, 3.5, logged.Weight, 0.001)
	require.NotNil(t, logged.Location)
	assert.InDelta(t, settings.Location.Default.Latitude, logged.Location.Latitude, 0.0001)

	out, err = runCLI(t, settings, "", "catch", "list", "--json")
	require.NoError(t, err)
	var list []datastore.CatchRecord
	require.NoError(t, json.Unmarshal([]byte(out), &list), out)
	require.Len(t, list, 1)
	assert.Equal(t, "Walleye", list[0].SpeciesName())

	out, err = runCLI(t, settings, "", "catch", "today")
	require.NoError(t, err)
	assert.Contains(t, out, logged.ID)
	assert.Contains(t, out, "3.5 lbs")

	out, err = runCLI(t, settings, "", "catch", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Today:        1")

	out, err = runCLI(t, settings, "", "catch", "show", logged.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "22.0 in")

	_, err = runCLI(t, settings, "", "catch", "delete", logged.ID)
	require.NoError(t, err)

	_, err = runCLI(t, settings, "", "catch", "show", logged.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCatchLogNegativeWeight(t *testing.T) {
	settings := writeConfig(t)
	_, err := runCLI(t, settings, "", "catch", "log", "perch", "--weight=-1")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	out, err := runCLI(t, settings, "", "catch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No catches")
}

func TestCatchRangeRejectsBadDate(t *testing.T) {
	settings := writeConfig(t)
	_, err := runCLI(t, settings, "", "catch", "range", "yesterday")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestCatchClearAsks(t *testing.T) {
	settings := writeConfig(t)
	_, err := runCLI(t, settings, "", "catch", "log", "bass")
	require.NoError(t, err)

	out, err := runCLI(t, settings, "n\n", "catch", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")

	out, err = runCLI(t, settings, "", "catch", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "No catches")

	out, err = runCLI(t, settings, "", "catch", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "All data deleted")

	out, err = runCLI(t, settings, "", "catch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No catches")
}

func TestLureCommands(t *testing.T) {
	settings := writeConfig(t)

	out, err := runCLI(t, settings, "", "lures", "add", "--manufacturer", "Reef Runner", "--color", "Purple Demon", "--length", "3.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Added Reef Runner Purple Demon")

	catalog := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(catalog, []byte(`[
		{"manufacturer": "Reef Runner", "color": "Purple Demon", "length": 3.5, "buoyancy": "floating"},
		{"manufacturer": "Bandit", "color": "Pink Lemonade", "length": 2.75}
	]`), 0o600))

	out, err = runCLI(t, settings, "", "lures", "import", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 new lures, updated 1")

	out, err = runCLI(t, settings, "", "lures", "list", "--json")
	require.NoError(t, err)
	var list []datastore.Lure
	require.NoError(t, json.Unmarshal([]byte(out), &list), out)
	assert.Len(t, list, 2)
}

func TestLuresAddRequiresManufacturer(t *testing.T) {
	settings := writeConfig(t)
	_, err := runCLI(t, settings, "", "lures", "add", "--color", "Chartreuse")
	require.Error(t, err)
}

func TestBackupRunAndList(t *testing.T) {
	settings := writeConfig(t)
	_, err := runCLI(t, settings, "", "catch", "log", "walleye")
	require.NoError(t, err)

	out, err := runCLI(t, settings, "", "backup", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup written to "+settings.Backup.Dir)

	entries, err := os.ReadDir(settings.Backup.Dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestWeatherWithoutAPIKey(t *testing.T) {
	t.Setenv("TROLLTRACK_WEATHER_API_KEY", "")
	settings := writeConfig(t)
	_, err := runCLI(t, settings, "", "weather", "current", "--lat", "41.7", "--lon", "-83.0")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAPINotConfigured))
}

func TestProgramCommands(t *testing.T) {
	settings := writeConfig(t)

	out, err := runCLI(t, settings, "", "program", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No programs")

	out, err = runCLI(t, settings, "", "program", "add", "Dipsy", "divers", "--description", "30 ft back")
	require.NoError(t, err)
	assert.Contains(t, out, "Added program Dipsy divers")
	_, err = runCLI(t, settings, "", "program", "add", "Lead core")
	require.NoError(t, err)

	out, err = runCLI(t, settings, "", "program", "activate", "dipsy divers")
	require.NoError(t, err)
	assert.Contains(t, out, "Active program: Dipsy divers")

	out, err = runCLI(t, settings, "", "catch", "log", "walleye", "--json")
	require.NoError(t, err)
	var logged datastore.CatchRecord
	require.NoError(t, json.Unmarshal([]byte(out), &logged), out)
	require.NotNil(t, logged.Program)
	assert.Equal(t, "Dipsy divers", logged.Program.Name)

	_, err = runCLI(t, settings, "", "program", "update", "Dipsy divers", "--description", "40 ft back")
	require.NoError(t, err)

	out, err = runCLI(t, settings, "", "program", "list", "--json")
	require.NoError(t, err)
	var programs []datastore.Program
	require.NoError(t, json.Unmarshal([]byte(out), &programs), out)
	require.Len(t, programs, 2)
	assert.Equal(t, "Dipsy divers", programs[0].Name)
	assert.Equal(t, "40 ft back", programs[0].Description)
	assert.True(t, programs[0].IsActive)

	_, err = runCLI(t, settings, "", "program", "delete", "Dipsy divers")
	require.Error(t, err, "a program with catches cannot be deleted")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	out, err = runCLI(t, settings, "", "program", "delete", "lead core")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted program Lead core")

	_, err = runCLI(t, settings, "", "program", "deactivate")
	require.NoError(t, err)
	out, err = runCLI(t, settings, "", "catch", "log", "perch", "--json")
	require.NoError(t, err)
	logged = datastore.CatchRecord{}
	require.NoError(t, json.Unmarshal([]byte(out), &logged), out)
	assert.Nil(t, logged.Program)

	_, err = runCLI(t, settings, "", "program", "activate", "trolling motor")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestProgramAddRequiresName(t *testing.T) {
	settings := writeConfig(t)
	_, err := runCLI(t, settings, "", "program", "add", " ")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSettingsCommands(t *testing.T) {
	t.Setenv("TROLLTRACK_WEATHER_API_KEY", "")
	settings := writeConfig(t)

	out, err := runCLI(t, settings, "", "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "API key:  not configured")

	_, err = runCLI(t, settings, "", "settings", "set-key", "short")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "Please enter a valid API key.")

	out, err = runCLI(t, settings, "", "settings", "set-key", "abcdef0123456789")
	require.NoError(t, err)
	assert.Contains(t, out, "API key saved. (************6789)")

	out, err = runCLI(t, settings, "", "settings", "name", "Captain", "Dave")
	require.NoError(t, err)
	assert.Contains(t, out, "Display name: Captain Dave")

	out, err = runCLI(t, settings, "", "settings", "units", "metric")
	require.NoError(t, err)
	assert.Contains(t, out, "Units: metric")

	_, err = runCLI(t, settings, "", "settings", "units", "furlongs")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	loaded, err := conf.Load(settings.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789", loaded.WeatherAPIKey())
	assert.Equal(t, "Captain Dave", loaded.Preferences().Name)
	assert.Equal(t, conf.UnitsMetric, loaded.Preferences().Units)

	out, err = runCLI(t, settings, "", "settings", "units")
	require.NoError(t, err)
	assert.Contains(t, out, "Units: imperial")
}

func TestCatchStatsBySpecies(t *testing.T) {
	settings := writeConfig(t)
	for _, args := range [][]string{
		{"walleye", "--weight", "3.5"},
		{"walleye", "--weight", "6.5"},
		{"yellow", "perch"},
	} {
		_, err := runCLI(t, settings, "", append([]string{"catch", "log"}, args...)...)
		require.NoError(t, err)
	}

	out, err := runCLI(t, settings, "", "catch", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:        3")
	assert.Contains(t, out, "6.5 lbs")

	out, err = runCLI(t, settings, "", "catch", "stats", "--json")
	require.NoError(t, err)
	var state struct {
		Statistics datastore.CatchStatistics `json:"statistics"`
		BySpecies  []struct {
			Species string `json:"species"`
			Count   int    `json:"count"`
		} `json:"by_species"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &state), out)
	assert.Equal(t, int64(3), state.Statistics.Total)
	require.Len(t, state.BySpecies, 2)
	assert.Equal(t, "Walleye", state.BySpecies[0].Species)
	assert.Equal(t, 2, state.BySpecies[0].Count)
}

func TestLuresListDoesNotImport(t *testing.T) {
	settings := writeConfig(t)
	out, err := runCLI(t, settings, "", "lures", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No lures, run 'lures import'")
}
