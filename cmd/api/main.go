package main

import (
	"context"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"swapit/internal/adapter/api"
	"swapit/internal/adapter/api/handler"
	apimiddleware "swapit/internal/adapter/api/middleware"
	"swapit/internal/adapter/api/router"
	"swapit/internal/domain/repository"
	"swapit/internal/infrastructure/firebase"
	"swapit/internal/infrastructure/memstore"
	"swapit/internal/infrastructure/storage"
	"swapit/internal/infrastructure/websocket"
	"swapit/internal/usecase"
	"swapit/pkg/config"
)

var databaseScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/firebase.database",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var store repository.RemoteStore
	var objects repository.ObjectStore
	var verifier apimiddleware.TokenVerifier
	var emails handler.EmailDirectory

	if cfg.FirebaseProject == "" && cfg.Environment == "development" {
		// Local development without Firebase credentials: everything
		// runs against the in-memory store and header-based auth.
		log.Printf("No Firebase project configured, using in-memory store")
		store = memstore.New()
		objects = memstore.NewObjectStore()
	} else {
		opt, credsJSON := credentialOption(cfg)
		var opts []option.ClientOption
		if opt != nil {
			opts = append(opts, opt)
		}

		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{
			ProjectID:   cfg.FirebaseProject,
			DatabaseURL: cfg.DatabaseURL,
		}, opts...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}

		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		fbAuth := firebase.NewFirebaseAuthClient(authClient)
		verifier = fbAuth
		emails = fbAuth

		dbClient, err := firebaseApp.Database(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Realtime Database: %v", err)
		}

		tokens, err := tokenSource(ctx, credsJSON)
		if err != nil {
			log.Fatalf("Failed to build database token source: %v", err)
		}
		store = firebase.NewRTDBClient(dbClient, cfg.DatabaseURL, tokens)

		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, cfg.ServiceAccountPath)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Storage: %v", err)
		}
		defer storageClient.Close()
		objects = storageClient
	}

	hub := usecase.NewSyncHub(store)
	itemLifecycle := usecase.NewItemLifecycle(store, objects)
	profileUseCase := usecase.NewProfileUseCase(store)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)

	profileHandler := handler.NewProfileHandler(profileUseCase, emails)
	itemHandler := handler.NewItemHandler(itemLifecycle)
	swipeHandler := handler.NewSwipeHandler(hub)
	conversationHandler := handler.NewConversationHandler(hub)
	wsHandler := handler.NewWebSocketHandler(wsManager, hub, authMiddleware)

	router.Setup(e, authMiddleware, profileHandler, itemHandler, swipeHandler, conversationHandler, wsHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}

// credentialOption resolves the service account the way deployments
// provide it: inline JSON in the environment first, then a key file.
// The raw JSON (when available) also feeds the database token source.
func credentialOption(cfg *config.Config) (option.ClientOption, []byte) {
	if cfg.ServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)), []byte(cfg.ServiceAccountJSON)
	}

	if cfg.ServiceAccountPath != "" {
		data, err := os.ReadFile(cfg.ServiceAccountPath)
		if err != nil {
			log.Fatalf("Failed to read service account file %s: %v", cfg.ServiceAccountPath, err)
		}
		log.Printf("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		return option.WithCredentialsFile(cfg.ServiceAccountPath), data
	}

	return nil, nil
}

func tokenSource(ctx context.Context, credsJSON []byte) (oauth2.TokenSource, error) {
	if credsJSON != nil {
		creds, err := google.CredentialsFromJSON(ctx, credsJSON, databaseScopes...)
		if err != nil {
			return nil, err
		}
		return creds.TokenSource, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, databaseScopes...)
	if err != nil {
		return nil, err
	}
	return creds.TokenSource, nil
}
