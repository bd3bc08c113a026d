package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	APIConfig struct {
		BaseURL        string
		RequestTimeout time.Duration
	}

	SessionConfig struct {
		Backend        string // bolt | redis
		BoltPath       string
		// EphemeralPath, when set, keeps the ephemeral scope in a bolt file instead of memory.
		EphemeralPath  string
		RedisAddr      string
		RedisPassword  string
		RedisDB        int
		RedisKeyPrefix string
	}

	AuthConfig struct {
		// TestIdentities enables the fixture accounts that bypass the remote backend.
		// Never enable it in PROD.
		TestIdentities bool
		TestPassword   string
	}

	Config struct {
		Debug        bool
		TestMode     bool
		AppName      string
		Env          string
		Build        string
		RollbarToken string
		DataDir      string

		Server  ServerConfig
		API     APIConfig
		Session SessionConfig
		Auth    AuthConfig
	}
)

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if it exists) and the environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
// Every key can be overridden by an env variable prefixed with the environment, eg. DEV_API_BASEURL.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	conf := viper.New()
	conf.SetTypeByDefaultValue(true)
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	setDefaults(conf, env)
	conf.AutomaticEnv()

	dataDir := conf.GetString("dataDir")
	boltPath := conf.GetString("session.boltPath")
	if boltPath == "" {
		boltPath = filepath.Join(dataDir, "session.db")
	}

	return &Config{
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		Env:          env,
		Build:        conf.GetString("build"),
		RollbarToken: conf.GetString("rollbarToken"),
		DataDir:      dataDir,
		Server: ServerConfig{
			Address:         conf.GetString("server.address"),
			Host:            conf.GetString("server.host"),
			DebugHost:       conf.GetString("server.debugHost"),
			ReadTimeout:     conf.GetDuration("server.readTimeout"),
			WriteTimeout:    conf.GetDuration("server.writeTimeout"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  conf.GetBool("server.disableReqLogs"),
		},
		API: APIConfig{
			BaseURL:        strings.TrimRight(conf.GetString("api.baseURL"), "/"),
			RequestTimeout: conf.GetDuration("api.requestTimeout"),
		},
		Session: SessionConfig{
			Backend:        strings.ToLower(conf.GetString("session.backend")),
			BoltPath:       boltPath,
			EphemeralPath:  conf.GetString("session.ephemeralPath"),
			RedisAddr:      conf.GetString("session.redisAddr"),
			RedisPassword:  conf.GetString("session.redisPassword"),
			RedisDB:        conf.GetInt("session.redisDB"),
			RedisKeyPrefix: conf.GetString("session.redisKeyPrefix"),
		},
		Auth: AuthConfig{
			TestIdentities: conf.GetBool("auth.testIdentities"),
			TestPassword:   conf.GetString("auth.testPassword"),
		},
	}
}

func setDefaults(conf *viper.Viper, env string) {
	nonProd := env == "DEV" || env == "TEST"

	conf.SetDefault("debug", env == "DEV")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("appName", "Masomo")
	conf.SetDefault("build", "develop")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("dataDir", defaultDataDir())

	conf.SetDefault("server.address", "127.0.0.1:8000")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.debugHost", "127.0.0.1:4000")
	conf.SetDefault("server.readTimeout", 5*time.Second)
	conf.SetDefault("server.writeTimeout", 10*time.Second)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("api.baseURL", "http://localhost:5000/api")
	conf.SetDefault("api.requestTimeout", 15*time.Second)

	conf.SetDefault("session.backend", "bolt")
	conf.SetDefault("session.boltPath", "")
	conf.SetDefault("session.ephemeralPath", "")
	conf.SetDefault("session.redisAddr", "127.0.0.1:6379")
	conf.SetDefault("session.redisPassword", "")
	conf.SetDefault("session.redisDB", 0)
	conf.SetDefault("session.redisKeyPrefix", "masomo:session:")

	conf.SetDefault("auth.testIdentities", nonProd)
	conf.SetDefault("auth.testPassword", "Masomo@2024")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "masomo")
	}
	return filepath.Join(os.TempDir(), "masomo")
}

func getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	return wd
}
