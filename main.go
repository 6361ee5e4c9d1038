package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"collabcanvas/collab"
	"collabcanvas/handlers/api/canvases"
	"collabcanvas/handlers/api/shares"
	"collabcanvas/handlers/auth"
	"collabcanvas/handlers/websocket"
	authMiddleware "collabcanvas/middleware"
	"collabcanvas/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(store stores.Store, engine *collab.Engine) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/canvas", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)
		r.Post("/", canvases.HandleCreate(store))
		r.Get("/", canvases.HandleList(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", canvases.HandleGet(store))
			r.Get("/active", canvases.HandleActiveUsers(store, engine))
			r.Put("/collaborators", canvases.HandleAddCollaborator(store))
			r.Delete("/", canvases.HandleDelete(store))
		})
	})

	r.Route("/api/share", func(r chi.Router) {
		r.Post("/", shares.HandleCreate(store))
		r.Get("/{id}", shares.HandleGet(store))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	return r
}

func waitForShutdown(srv *socketio.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	srv.Close(nil)
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	store := stores.GetStore()

	engine := collab.NewEngine(store)
	gateway := collab.NewGateway(auth.TokenVerifier{})

	r := setupRouter(store, engine)

	io := websocket.SetupSocketIO(gateway, engine)
	r.Mount("/socket.io/", io.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(io)
}
