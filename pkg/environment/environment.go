package environment

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// Production defines the prod environment
const Production = "prod"

// Staging defines the staging environment
const Staging = "staging"

// Dev defines the dev environment
const Dev = "dev"

// Environment holds every setting the service reads on startup
type Environment struct {
	Environment     string `mapstructure:"APP_ENV"`
	Port            string `mapstructure:"PORT"`
	Cors            string `mapstructure:"CORS"`
	Secret          string `mapstructure:"SECRET"`
	SchedulerSecret string `mapstructure:"SCHEDULER_SECRET"`
	Database        string `mapstructure:"DATABASE"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	Redis           string `mapstructure:"REDIS"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`

	SweepInterval        time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepMinGap          time.Duration `mapstructure:"SWEEP_MIN_GAP"`
	SweepBatchSize       int           `mapstructure:"SWEEP_BATCH_SIZE"`
	DefaultMaxExtensions int           `mapstructure:"DEFAULT_MAX_EXTENSIONS"`
	SelectionPolicy      string        `mapstructure:"SELECTION_POLICY"`
	StatusCacheTTL       time.Duration `mapstructure:"STATUS_CACHE_TTL"`

	FirebaseCredentials   string `mapstructure:"FIREBASE_CREDENTIALS"`
	GCPProjectID          string `mapstructure:"GCP_PROJECT_ID"`
	Sendinblue            string `mapstructure:"SENDINBLUE"`
	AssignedEmailTemplate string `mapstructure:"ASSIGNED_EMAIL_TEMPLATE"`
}

// Global is the environment loaded by Initialize
var Global Environment

// Defaults returns the settings used when a key is missing
func Defaults() Environment {
	return Environment{
		Environment:          Dev,
		Port:                 "80",
		Database:             "freelanceflow",
		DatabaseURL:          "mongodb://localhost:27017",
		SweepInterval:        60 * time.Second,
		SweepMinGap:          30 * time.Second,
		SweepBatchSize:       100,
		DefaultMaxExtensions: 2,
		SelectionPolicy:      "first_applied",
		StatusCacheTTL:       5 * time.Second,
	}
}

// Initialize reads an optional .env file, overlays the process environment and decodes the result into Global
func Initialize() error {
	data, err := godotenv.Read(".env")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if data == nil {
		data = map[string]string{}
	}

	for _, pair := range os.Environ() {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 && parts[1] != "" {
			data[parts[0]] = parts[1]
		}
	}

	env, err := Decode(data)
	if err != nil {
		return err
	}

	Global = env
	return nil
}

// Decode turns raw key/value pairs into an Environment on top of Defaults
func Decode(data map[string]string) (Environment, error) {
	env := Defaults()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &env,
	})
	if err != nil {
		return env, err
	}

	err = decoder.Decode(data)
	if err != nil {
		return env, err
	}

	return env, nil
}

// IsProduction reports whether the service runs in prod
func (e Environment) IsProduction() bool {
	return e.Environment == Production
}
