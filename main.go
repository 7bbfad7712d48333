package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nkjm/line-login/authenticator"
	"github.com/nkjm/line-login/controllers"
	authmiddleware "github.com/nkjm/line-login/middleware"
	"github.com/nkjm/line-login/database"
	"github.com/nkjm/line-login/repositories"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize database
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "line_login.db"
	}
	if err := database.InitializeDatabase(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	// Initialize repositories
	repos := repositories.NewRepositories(database.GetDB())

	// Initialize the LINE Login provider
	provider, err := authenticator.NewLINEProvider(authenticator.LINEConfig{
		ChannelID:     os.Getenv("LINE_CHANNEL_ID"),
		ChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
		CallbackURL:   os.Getenv("LINE_CALLBACK_URL"),
		Scope:         os.Getenv("LINE_SCOPE"),
		Prompt:        os.Getenv("LINE_PROMPT"),
		BotPrompt:     authenticator.BotPrompt(os.Getenv("LINE_BOT_PROMPT")),
	})
	if err != nil {
		log.Fatalf("Failed to initialize LINE Login provider: %v", err)
	}

	// Initialize controllers
	ctrl := controllers.NewControllers(provider, repos)

	// Set up router
	r, err := setupRouter(ctrl, repos)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("LINE Login demo starting on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}

// setupRouter configures all routes
func setupRouter(ctrl *controllers.Controllers, repos *repositories.Repositories) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second)) // generous timeout for OAuth callbacks
	r.Use(middleware.Compress(5))

	// Session middleware
	sessionHandler, err := session.Sessioner(session.Options{
		Provider:    "memory",
		CookieName:  "line_login_session",
		Secure:      os.Getenv("USE_HTTPS") == "true",
		Gclifetime:  3600,
		Maxlifetime: 3600,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	r.Use(sessionHandler)

	// PUBLIC ROUTES (no authentication required)
	r.Get("/", home)
	r.Mount("/auth", ctrl.Auth.Routes())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status": "healthy", "service": "line-login"}`)
	})

	// PROTECTED ROUTES (authentication required)
	r.Group(func(r chi.Router) {
		r.Use(authmiddleware.RequireAuth)
		r.Use(authmiddleware.AuditLogger(repos.Audit))

		r.Mount("/account", ctrl.Account.Routes())
	})

	return r, nil
}

func home(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)
	w.Header().Set("Content-Type", "text/html")

	if name, ok := sess.Get(controllers.DisplayNameSessionKey).(string); ok && name != "" {
		fmt.Fprintf(w, "<h1>Welcome back, %s!</h1><p><a href=%q>Account</a> | <a href=%q>Log out</a></p>",
			name, "/account", "/auth/logout")
		return
	}

	fmt.Fprintf(w, "<h1>LINE Login demo</h1><p><a href=%q>Log in with LINE</a></p>", "/auth/login")
}
