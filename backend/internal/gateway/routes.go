package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"studentpredict/backend/internal/auth"
	"studentpredict/backend/internal/gateway/handlers"
	"studentpredict/backend/internal/gateway/util"
	"studentpredict/backend/internal/prediction"
	"studentpredict/backend/internal/shared"
	"studentpredict/backend/internal/student"
)

// Services bundles the domain services the router dispatches to.
type Services struct {
	Auth       *auth.Service
	Prediction *prediction.Service
	Student    *student.Service
}

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(config *shared.AppConfig, services *Services) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestSize(config.Upload.MaxBodyBytes))
	r.Use(middleware.Timeout(90 * time.Second)) // batch calls alone may take up to 60s

	// CORS Configuration (Allow React Frontend)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.CORS.AllowedOrigins,
		AllowedMethods:   config.CORS.AllowedMethods,
		AllowedHeaders:   config.CORS.AllowedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           config.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{AuthService: services.Auth}
	batchHandler := &handlers.BatchHandler{PredictionService: services.Prediction, MaxFileBytes: config.Upload.MaxFileBytes}
	predictionHandler := &handlers.PredictionHandler{PredictionService: services.Prediction, MaxFileBytes: config.Upload.MaxFileBytes}
	studentHandler := &handlers.StudentHandler{StudentService: services.Student}
	facultyHandler := &handlers.FacultyHandler{PredictionService: services.Prediction}

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// --- Public Routes ---

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			util.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok", "service": "student-performance-api"}, "OK")
		})

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// --- Protected Routes (Require Valid Token) ---
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(services.Auth))

			r.Get("/auth/me", authHandler.Me)

			// Batch pipeline
			r.Route("/batches", func(r chi.Router) {
				r.Use(RequireRoles(shared.RoleFaculty, shared.RoleAdmin))
				r.Get("/", batchHandler.List)
				r.Get("/{id}", batchHandler.Details)
				r.Post("/upload", batchHandler.Upload)
				r.Delete("/{id}", batchHandler.Delete)
			})

			// Predictions
			r.Route("/predictions", func(r chi.Router) {
				r.Post("/single", predictionHandler.Single)
				r.With(RequireRoles(shared.RoleFaculty, shared.RoleAdmin)).Post("/batch", predictionHandler.UploadBatch)
				r.With(RequireRoles(shared.RoleFaculty, shared.RoleAdmin)).Get("/all", predictionHandler.ListAll)
				r.Get("/", predictionHandler.ListMine)
				r.Post("/", predictionHandler.Save)
			})

			// Students
			r.Route("/students", func(r chi.Router) {
				r.Use(RequireRoles(shared.RoleAdmin, shared.RoleFaculty))
				r.Post("/", studentHandler.Create)
				r.Get("/", studentHandler.List)
			})

			// Faculty
			r.With(RequireRoles(shared.RoleFaculty, shared.RoleAdmin)).
				Get("/faculty/dashboard", facultyHandler.Dashboard)
		})
	})

	return r
}

// AuthMiddleware validates the bearer token and injects the user into the
// request context.
func AuthMiddleware(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := util.ExtractToken(r)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			user, err := authService.Authenticate(r.Context(), tokenStr)
			if err != nil {
				util.HandleServiceError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithUser(r.Context(), user)))
		})
	}
}

// RequireRoles rejects authenticated users whose role is not in the allow
// list. Must run after AuthMiddleware.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := handlers.UserFromContext(r.Context())
			if !ok {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			if !allowed[user.Role] {
				util.WriteJSONError(w, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
