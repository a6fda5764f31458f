package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AshramC/YXZX-ARG/pkg/content"
)

type ContentHandler struct {
	loader *content.Loader
	logger *slog.Logger
}

func NewContentHandler(loader *content.Loader, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{loader: loader, logger: logger}
}

// Languages lists the installed content languages
func (h *ContentHandler) Languages(c *gin.Context) {
	langs, err := h.loader.Languages()
	if err != nil {
		h.logger.Error("Failed to list languages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list languages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"languages": langs})
}

// Problems validates the content of one language
func (h *ContentHandler) Problems(c *gin.Context) {
	lang := c.Param("lang")
	bundle, err := h.loader.Load(lang)
	if err != nil {
		h.logger.Warn("Failed to load content", "lang", lang, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	problems := []string{}
	for _, e := range content.Validate(bundle) {
		problems = append(problems, e.Error())
	}
	c.JSON(http.StatusOK, gin.H{"lang": bundle.Lang, "problems": problems})
}
