package email

// Config holds email delivery settings. Without a Postmark server token the
// service falls back to DevSender, which writes messages to DevDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"EMAIL_SENDER" envDefault:"noreply@clinickit.local"`
	SupportEmail         string `env:"EMAIL_SUPPORT" envDefault:"support@clinickit.local"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./data/emails"`
}
