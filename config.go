package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

const configDirEnv = "YTRSS_CONFIG_DIR"

type Config struct {
	DBPath         string
	OPMLPath       string
	LogPath        string
	LogLevel       string
	PlayerCommand  string
	YtdlpPath      string
	ShowShorts     bool
	SeasonalThemes bool
	MultiPlaylists bool
}

var (
	userConfigDir   = os.UserConfigDir
	configWriteFile = renameio.WriteFile
)

func DefaultConfig() Config {
	dir := configDir()
	return Config{
		DBPath:         filepath.Join(dir, "ytrss.db"),
		OPMLPath:       filepath.Join(dir, "ytRss.opml"),
		LogPath:        filepath.Join(dir, "ytrss.log"),
		LogLevel:       "info",
		PlayerCommand:  "quicktube",
		YtdlpPath:      "yt-dlp",
		ShowShorts:     true,
		SeasonalThemes: true,
		MultiPlaylists: false,
	}
}

func LoadConfig() (Config, error) {
	path := configPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if err := SaveConfig(cfg); err != nil {
				return Config{}, err
			}
			return cfg, nil
		}
		return Config{}, err
	}

	cfg := DefaultConfig()
	if err := parseConfig(string(data), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func SaveConfig(cfg Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return configWriteFile(path, []byte(renderConfig(cfg)), 0o600)
}

func configDir() string {
	if dir := strings.TrimSpace(os.Getenv(configDirEnv)); dir != "" {
		return dir
	}
	base, err := userConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "ytrss")
}

func configPath() string {
	return filepath.Join(configDir(), "ytrss.conf")
}

// parseConfig reads the INI layout written by renderConfig. Section
// headers are accepted and ignored since every key is unique.
func parseConfig(raw string, cfg *Config) error {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		sep := strings.IndexAny(line, "=:")
		if sep < 0 {
			return fmt.Errorf("invalid config line: %q", line)
		}
		key := strings.ToLower(strings.TrimSpace(line[:sep]))
		value := trimQuotes(line[sep+1:])
		switch key {
		case "db_path":
			cfg.DBPath = value
		case "opml_path":
			cfg.OPMLPath = value
		case "log_path":
			cfg.LogPath = value
		case "log_level":
			cfg.LogLevel = value
		case "player_command":
			cfg.PlayerCommand = value
		case "ytdlp_path":
			cfg.YtdlpPath = value
		case "show_shorts", "seasonal_themes", "multi_playlists":
			parsed, err := parseBool(value)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			switch key {
			case "show_shorts":
				cfg.ShowShorts = parsed
			case "seasonal_themes":
				cfg.SeasonalThemes = parsed
			default:
				cfg.MultiPlaylists = parsed
			}
		default:
			// ignore unknown keys for forward compatibility
		}
	}
	return scanner.Err()
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", value)
}

func trimQuotes(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	unquoted, err := strconv.Unquote(value)
	if err == nil {
		return unquoted
	}
	return strings.Trim(value, "\"")
}

func renderBool(value bool) string {
	if value {
		return "True"
	}
	return "False"
}

func renderConfig(cfg Config) string {
	lines := []string{
		"[General]",
		"show_shorts = " + renderBool(cfg.ShowShorts),
		"seasonal_themes = " + renderBool(cfg.SeasonalThemes),
		"multi_playlists = " + renderBool(cfg.MultiPlaylists),
		"",
		"[Paths]",
		"db_path = " + cfg.DBPath,
		"opml_path = " + cfg.OPMLPath,
		"log_path = " + cfg.LogPath,
		"",
		"[Tools]",
		"player_command = " + cfg.PlayerCommand,
		"ytdlp_path = " + cfg.YtdlpPath,
		"log_level = " + cfg.LogLevel,
	}
	return strings.Join(lines, "\n") + "\n"
}
