package tidings

// Config represents the main config
type Config struct {
	DB struct {
		Type string // "bolt", "sqlite" or "postgres"
		Path string
		DSN  string
	}

	HTTP struct {
		Addr   string
		Domain string
		// URL is the public base URL used in links embedded in outgoing mail.
		URL string
	}

	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
	}

	Auth struct {
		JWT struct {
			Secret string
		}
	}

	Newsletter struct {
		From    string
		Welcome bool
		Product struct {
			Name string
			Link string
		}
		HMAC struct {
			Secret string
		}
		DailyVerse struct {
			Enabled bool
			Topic   string
			Subject string
			Verses  []string
			Cron    struct {
				Spec string
			}
		}
	}

	Sentry struct {
		DSN string
	}

	AMQP struct {
		URL   string
		Queue string
	}

	Log struct {
		Level string
	}
}
