package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/agentpay-ledger/internal/infra/auth"
	"go.uber.org/zap"
)

type Server struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка RS256-подписи инструкций (subject = идентичность агента/мерчанта)
	validator auth.TokenValidator

	handler *Handler
}

// NewServer собирает HTTP-слой леджера: маршруты + защищенный периметр.
func NewServer(validator auth.TokenValidator, h *Handler, logger *zap.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.Named("ledger-api"),
		validator: validator,
		handler:   h,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.validator, s.logger))

		// Политики агентов (перезапись целиком, только самим агентом)
		r.Put("/v1/agents/{agent}/policy", s.handler.SetPolicy)

		// Регистрация счетчиков (authority = subject токена)
		r.Post("/v1/meters", s.handler.CreateMeter)

		// Жизненный цикл платежного тикета
		r.Route("/v1/payments", func(r chi.Router) {
			r.Post("/authorize", s.handler.AuthorizePayment) // Выдача тикета (proof-gated)
			r.Post("/record", s.handler.RecordPayment)       // Одноразовое погашение
		})
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
