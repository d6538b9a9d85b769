package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/emercoin/emcid-login/pkg/audit"
	"github.com/emercoin/emcid-login/pkg/authflow"
	flowapi "github.com/emercoin/emcid-login/pkg/authflow/api"
	"github.com/emercoin/emcid-login/pkg/authz"
	"github.com/emercoin/emcid-login/pkg/config"
	"github.com/emercoin/emcid-login/pkg/emcid"
	"github.com/emercoin/emcid-login/pkg/hooks"
	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/notification"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
	"github.com/emercoin/emcid-login/pkg/token"
)

type DbConfig struct {
	Enabled  bool   `env:"EMCID_PG_ENABLED" env-default:"false"`
	Host     string `env:"EMCID_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMCID_PG_PORT" env-default:"5432"`
	Database string `env:"EMCID_PG_DATABASE" env-default:"emcid_db"`
	User     string `env:"EMCID_PG_USER" env-default:"emcid"`
	Password string `env:"EMCID_PG_PASSWORD" env-default:"pwd"`
}

func (d DbConfig) toDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

type JwtConfig struct {
	JwtSecret      string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer         string `env:"JWT_ISSUER" env-default:"emcid-login"`
	Audience       string `env:"JWT_AUDIENCE" env-default:"emcid-app"`
	CookieHttpOnly bool   `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure   bool   `env:"COOKIE_SECURE" env-default:"false"`
}

type SmtpConfig struct {
	Host     string `env:"SMTP_HOST" env-default:""`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	TLS      bool   `env:"SMTP_TLS" env-default:"true"`
	Username string `env:"SMTP_USERNAME" env-default:""`
	Password string `env:"SMTP_PASSWORD" env-default:""`
	From     string `env:"SMTP_FROM" env-default:""`
}

type SiteConfig struct {
	BaseURL  string `env:"SITE_BASE_URL" env-default:"http://localhost:4000"`
	SiteName string `env:"SITE_NAME" env-default:"EmercoinID Login"`
}

type Config struct {
	DbConfig   DbConfig
	AppConfig  app.AppConfig
	JwtConfig  JwtConfig
	SmtpConfig SmtpConfig
	SiteConfig SiteConfig
}

func main() {
	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	providerConfig := config.NewProviderConfigFromEnv()
	loginConfig := config.NewLoginConfigFromEnv()

	if !providerConfig.IsConfigured() {
		slog.Warn("EmercoinID provider is not fully configured; logins will fail until it is")
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	// Repositories: Postgres when enabled, in-memory otherwise.
	var accounts linker.AccountRepository
	var bindings linker.BindingRepository
	if cfg.DbConfig.Enabled {
		pool, err := dbutils.NewDbPool(context.Background(), cfg.DbConfig.toDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DbConfig.Database, "host", cfg.DbConfig.Host, "err", err)
			os.Exit(-1)
		}
		if _, err := pool.Exec(context.Background(), linker.Schema); err != nil {
			slog.Error("Failed ensuring schema", "err", err)
			os.Exit(-1)
		}
		accounts = linker.NewPostgresAccountRepository(pool)
		bindings = linker.NewPostgresBindingRepository(pool)
	} else {
		slog.Info("Using in-memory repositories; accounts will not survive a restart")
		accounts = linker.NewInMemoryAccountRepository()
		bindings = linker.NewInMemoryBindingRepository()
	}

	// Hooks: email notices when SMTP is configured.
	var flowHooks hooks.Hooks = hooks.NopHooks{}
	if cfg.SmtpConfig.Host != "" {
		var smtp notification.SMTPConfig
		copier.Copy(&smtp, &cfg.SmtpConfig)
		manager, err := notification.NewNotificationManagerWithOptions(
			cfg.SiteConfig.BaseURL,
			notification.WithSMTP(smtp),
			notification.WithDefaultTemplates(),
		)
		if err != nil {
			slog.Error("Failed creating notification manager", "err", err)
			os.Exit(-1)
		}
		flowHooks = hooks.NewNotifyHooks(manager, cfg.SiteConfig.SiteName)
	}

	linkerSvc := linker.NewService(accounts, bindings,
		linker.WithRegistrationMode(loginConfig.Mode()),
		linker.WithDefaultRoles(loginConfig.DefaultRoles...),
		linker.WithAccountCreatedFunc(flowHooks.AccountCreated),
	)

	issuer := token.NewIssuer(cfg.JwtConfig.JwtSecret, cfg.JwtConfig.Issuer, cfg.JwtConfig.Audience)
	authorizer := authz.NewService(authz.Config{
		SuperuserID:       loginConfig.Superuser(),
		DisableAdminLogin: loginConfig.DisableAdminLogin,
		DisabledRoles:     loginConfig.DisabledRoles,
	}, token.NewSessionFinalizer(issuer), authz.WithHooks(flowHooks))

	provider := providerConfig.Provider()
	var clientOpts []emcid.ClientOption
	if providerConfig.InsecureTLS {
		clientOpts = append(clientOpts, emcid.WithInsecureTLS())
	}
	client := emcid.NewClient(&provider, clientOpts...)

	flowOpts := []authflow.Option{
		authflow.WithHooks(flowHooks),
		authflow.WithPostLoginPath(loginConfig.PostLoginPath),
	}
	if loginConfig.RedirectNewUsersToProfile {
		flowOpts = append(flowOpts, authflow.WithProfileRedirect(loginConfig.ProfilePath))
	}
	flow := authflow.NewService(provider, client, linkerSvc, authorizer,
		cfg.SiteConfig.BaseURL+"/login/return", flowOpts...)

	cookies := token.NewCookieSetter(cfg.JwtConfig.CookieHttpOnly, cfg.JwtConfig.CookieSecure)
	handle := flowapi.NewHandle(flow, sessiondata.NewInMemoryManager(), cookies)
	auditMiddleware := audit.NewMiddleware(audit.Config{Source: "emcid-login"})
	server.R.Group(func(r chi.Router) {
		r.Use(auditMiddleware.LoginAuditMiddleware)
		handle.Routes(r)
	})

	// Authenticated routes verified against the issued session token.
	tokenAuth := token.NewVerifier(cfg.JwtConfig.JwtSecret)
	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verify(tokenAuth, jwtauth.TokenFromHeader, token.FromCookie))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				slog.Error("Failed getting token claims", "err", err)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			render.JSON(w, r, map[string]interface{}{
				"id":       claims["sub"],
				"username": claims["username"],
				"roles":    claims["roles"],
			})
		})
	})

	server.Run()
}
