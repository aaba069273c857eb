package email

type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkAPIURL       string `env:"POSTMARK_API_URL"` // overrides the Postmark endpoint
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@petvoice.app"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@petvoice.app"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"` // used when no server token is set
}
