package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"lokapasar/internal/adapter/api"
	"lokapasar/internal/adapter/api/handler"
	apimiddleware "lokapasar/internal/adapter/api/middleware"
	"lokapasar/internal/adapter/api/router"
	"lokapasar/internal/adapter/repository"
	"lokapasar/internal/infrastructure/events"
	"lokapasar/internal/infrastructure/firebase"
	"lokapasar/internal/infrastructure/presence"
	"lokapasar/internal/infrastructure/storage"
	"lokapasar/internal/infrastructure/websocket"
	"lokapasar/internal/usecase"
	"lokapasar/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opt option.ClientOption

	// Try to get service account from environment variable (for production)
	serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		// Fallback to file path (for local development)
		serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if serviceAccountPath == "" {
			serviceAccountPath = "./service-account.json"
		}

		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}

		log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
		opt = option.WithCredentialsFile(serviceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	serviceAccountPath := ""
	if os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON") == "" {
		serviceAccountPath = os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if serviceAccountPath == "" {
			serviceAccountPath = "./service-account.json"
		}
	}

	storageClient, err := storage.NewCloudStorageClient(
		ctx,
		cfg.StorageBucket,
		cfg.FirebaseProject,
		serviceAccountPath,
	)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	conversationRepo := repository.NewFirestoreConversationRepository(firestoreClient)
	notificationRepo := repository.NewFirestoreNotificationRepository(firestoreClient)

	firebaseAuth := firebase.NewAuthClient(authClient, cfg.FirebaseApiKey)
	devTokens := firebase.NewDevTokens(cfg.JWTSecret, cfg.JWTExpiry)

	// In development, locally minted JWTs are accepted alongside Firebase
	// tokens so the stack can run without a real project.
	var verifier firebase.Verifier = firebaseAuth
	if cfg.Environment == "development" {
		verifier = firebase.ChainVerifier{firebaseAuth, devTokens}
	}

	tracker := presence.NewMemoryTracker()
	tracker.StartSweep(ctx, cfg.PresenceSweepEvery, cfg.PresenceStaleAfter)

	wsManager := websocket.NewManager(tracker)
	wsManager.Run(ctx)

	bus := events.NewBus(cfg.EventQueueSize)
	defer bus.Close()

	chatUseCase := usecase.NewChatUseCase(conversationRepo, userRepo, wsManager, tracker, bus, cfg.ReuseConversations)
	wsManager.SetChatService(usecase.NewChatChannel(chatUseCase))

	notificationUseCase := usecase.NewNotificationUseCase(notificationRepo, wsManager, tracker, cfg.NotifyDedupWindow)
	notificationUseCase.Run(ctx, bus)

	e := echo.New()

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)

	chatHandler := handler.NewChatHandler(chatUseCase)
	notificationHandler := handler.NewNotificationHandler(notificationUseCase)
	attachmentHandler := handler.NewAttachmentHandler(storageClient)
	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware, cfg.HandshakeTimeout)
	devTokenHandler := handler.NewDevTokenHandler(devTokens, userRepo)

	chatUseCase.StartCleanup(ctx)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	router.SetupChatRouter(e, chatHandler, attachmentHandler, authMiddleware)
	router.SetupNotificationRouter(e, notificationHandler, authMiddleware)
	router.SetupWebSocketRouter(e, wsHandler)
	router.SetupDevRouter(e, cfg.Environment, devTokenHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
