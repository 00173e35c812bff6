package handler

import (
	"vision-gateway/internal/service"
)

const defaultMaxUploadBytes = 20 << 20

type Handler struct {
	Gateway        *service.Gateway
	MaxUploadBytes int64
}

func NewHandler(gw *service.Gateway, maxUploadMb int) Handler {
	limit := int64(maxUploadMb) << 20
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	return Handler{Gateway: gw, MaxUploadBytes: limit}
}
