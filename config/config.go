package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL"`
	RunMode     string `env:"RUN_MODE" envDefault:"apply"`
	API         API
	MeroShare   MeroShare
	Application Application
	Jobs        Jobs
	GoogleDrive GoogleDrive
}

type API struct {
	Debug        bool          `env:"API_DEBUG"`
	Timeout      time.Duration `env:"API_TIMEOUT"`
	MeroShareApi MeroShareApi
}

type MeroShareApi struct {
	Url string `env:"MERO_SHARE_API_URL"`
}

type MeroShare struct {
	Username string `env:"MERO_SHARE_USERNAME"`
	Password string `env:"MERO_SHARE_PASSWORD"`
	DpID     string `env:"MERO_SHARE_DP_ID"`
}

type Application struct {
	TargetScrip    string `env:"TARGET_SCRIP" envDefault:""`
	Boid           string `env:"BOID"`
	CrnNumber      string `env:"CRN_NUMBER"`
	AppliedKitta   string `env:"APPLIED_KITTA" envDefault:"10"`
	TransactionPIN string `env:"TRANSACTION_PIN"`
}

type Jobs struct {
	ReportStatusesInterval time.Duration `env:"REPORT_STATUSES_JOB_INTERVAL" envDefault:"1h"`
	DriveCleanupInterval   time.Duration `env:"DRIVE_CLEANUP_JOB_INTERVAL" envDefault:"24h"`
}

type GoogleDrive struct {
	UploadReports   bool          `env:"GOOGLE_DRIVE_UPLOAD_REPORTS" envDefault:"false"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"720h"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
