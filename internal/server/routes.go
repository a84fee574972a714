package server

import (
	v1 "github.com/nulzo/chat-relay/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	healthHandler := v1.NewHealthHandler(s.config.Server.Env)
	s.router.GET("/health", healthHandler.Health)

	chat := s.router.Group("/api/chat")
	{
		chatHandler := v1.NewChatHandler(s.service)
		chat.POST("/stream", chatHandler.Stream)
		chat.POST("", chatHandler.Chat)
		chat.POST("/", chatHandler.Chat)

		modelHandler := v1.NewModelHandler(s.service)
		chat.GET("/models", modelHandler.ListModels)
	}

	frontendHandler := v1.NewFrontendHandler(s.config.Server.StaticDir)
	s.router.NoRoute(frontendHandler.Serve)
}
