package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vision-gateway/internal/dto"
	"vision-gateway/internal/response"
	"vision-gateway/internal/service"
	"vision-gateway/internal/types"
	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

func (h Handler) SubmitJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	var req dto.SubmitJobReq
	if err := c.ShouldBind(&req); err != nil {
		log.GetLogger().Warn("SubmitJob ShouldBind err", zap.Error(err))
		response.ErrorResponse(c, bindError(err))
		return
	}

	image, err := readUpload(c)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}

	params, err := buildParams(req)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}

	data, err := h.Gateway.Submit(service.SubmitRequest{
		Task:   req.Task,
		Model:  req.Model,
		Image:  image,
		Params: params,
	})
	if err != nil {
		log.GetLogger().Info("SubmitJob rejected", zap.String("task", req.Task), zap.String("model", req.Model), zap.Error(err))
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, data)
}

func bindError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.ErrInvalidImage.WithDetail(fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
	}
	return apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid parameters", err)
}

func readUpload(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, bindError(err)
		}
		return nil, apperrors.ErrInvalidImage.WithDetail("missing file part")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidImage, "Invalid image payload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidImage, "Invalid image payload", err)
	}
	return data, nil
}

// buildParams decodes the auxiliary form fields. categories is a JSON array
// or a comma separated list; prompt_boxes is a JSON array of 4-number boxes.
func buildParams(req dto.SubmitJobReq) (types.Params, error) {
	params := types.Params{
		TextInput:    strings.TrimSpace(req.TextInput),
		KeypointType: strings.TrimSpace(req.KeypointType),
		Visualize:    req.Visualize == nil || *req.Visualize,
	}

	if raw := strings.TrimSpace(req.Categories); raw != "" {
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &params.Categories); err != nil {
				return params, apperrors.ErrInvalidParams.WithDetail("categories: " + err.Error())
			}
		} else {
			for _, c := range strings.Split(raw, ",") {
				if c = strings.TrimSpace(c); c != "" {
					params.Categories = append(params.Categories, c)
				}
			}
		}
	}

	if raw := strings.TrimSpace(req.PromptBoxes); raw != "" {
		var boxes [][]float64
		if err := json.Unmarshal([]byte(raw), &boxes); err != nil {
			return params, apperrors.ErrInvalidParams.WithDetail("prompt_boxes: " + err.Error())
		}
		for i, b := range boxes {
			if len(b) != 4 {
				return params, apperrors.ErrInvalidParams.WithDetail(fmt.Sprintf("prompt_boxes[%d] must have 4 numbers", i))
			}
			params.PromptBoxes = append(params.PromptBoxes, types.Box{b[0], b[1], b[2], b[3]})
		}
	}
	return params, nil
}

func (h Handler) ListJobs(c *gin.Context) {
	response.Success(c, h.Gateway.ListJobs())
}

func (h Handler) GetJobStatus(c *gin.Context) {
	data, err := h.Gateway.Status(c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, data)
}

func (h Handler) GetJobResult(c *gin.Context) {
	var req dto.GetJobResultReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorResponse(c, bindError(err))
		return
	}

	data, err := h.Gateway.Result(c.Param("id"), req.Images == nil || *req.Images)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, data)
}

func (h Handler) GetArtifact(c *gin.Context) {
	data, mediaType, err := h.Gateway.Artifact(c.Request.Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	c.Data(http.StatusOK, mediaType, data)
}

func (h Handler) GetJobHistory(c *gin.Context) {
	var req dto.GetJobHistoryReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorResponse(c, bindError(err))
		return
	}

	rows, err := h.Gateway.History(req.Limit)
	if err != nil {
		log.GetLogger().Error("GetJobHistory failed", zap.Error(err))
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, rows)
}
