package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/blues/ideamarket/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SuperheroHandler struct {
	superheroLogic *logic.SuperheroLogic
}

func NewSuperheroHandler(superheroLogic *logic.SuperheroLogic) *SuperheroHandler {
	return &SuperheroHandler{superheroLogic: superheroLogic}
}

// GetSuperheroes 超级英雄列表
func (h *SuperheroHandler) GetSuperheroes(c *gin.Context) {
	page := pageQuery(c)
	heroes, total, err := h.superheroLogic.List(c.Request.Context(), page)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	PageResponse(c, heroes, page, total)
}

// GetSuperhero 按地址查询，数据库没有时读链上资料
func (h *SuperheroHandler) GetSuperhero(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	hero, err := h.superheroLogic.Get(c.Request.Context(), address)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", hero)
}

// GetProfile 链上资料
func (h *SuperheroHandler) GetProfile(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	profile, err := h.superheroLogic.Profile(c.Request.Context(), address)
	if err != nil {
		handleError(c, err, CodeFetch)
		return
	}
	SuccessResponse(c, http.StatusOK, "", profile)
}

// IsSuperhero 角色检查
func (h *SuperheroHandler) IsSuperhero(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	has, err := h.superheroLogic.IsSuperhero(c.Request.Context(), address)
	if err != nil {
		handleError(c, err, CodeCheck)
		return
	}
	SuccessResponse(c, http.StatusOK, "", IsSuperheroResponse{Address: address, IsSuperhero: has})
}

// GrantIdeaRegistryRole 授予创意注册合约角色，管理接口
func (h *SuperheroHandler) GrantIdeaRegistryRole(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	tx, err := h.superheroLogic.GrantIdeaRegistryRole(c.Request.Context(), address)
	if err != nil {
		handleError(c, err, CodeGrantRole)
		return
	}
	SuccessResponse(c, http.StatusOK, "Role granted successfully", TransactionResponse{
		TransactionHash: tx.Hash.Hex(),
		BlockNumber:     tx.BlockNumber,
	})
}

// CreateSuperhero 创建身份
func (h *SuperheroHandler) CreateSuperhero(c *gin.Context) {
	var req logic.CreateSuperheroInput
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.superheroLogic.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, CodeCreation)
		return
	}
	SuccessResponse(c, http.StatusCreated, result.Message, result)
}

// UploadMetadata 构造并上传元数据
func (h *SuperheroHandler) UploadMetadata(c *gin.Context) {
	var req logic.UploadMetadataInput
	if !bindJSON(c, &req) {
		return
	}
	pinned, err := h.superheroLogic.UploadMetadata(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, CodeUpload)
		return
	}
	SuccessResponse(c, http.StatusOK, "Metadata uploaded successfully", pinned)
}

// UploadAvatar 上传头像，只接受 5MB 以内的图片
func (h *SuperheroHandler) UploadAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, CodeNoFile, "No avatar file provided")
		return
	}
	mime := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		ErrorResponse(c, http.StatusBadRequest, CodeInvalidFileType, "Avatar must be an image")
		return
	}
	if header.Size > MaxAvatarSize {
		ErrorResponse(c, http.StatusBadRequest, CodeFileTooLarge, "Avatar must be 5MB or smaller")
		return
	}

	file, err := header.Open()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, CodeNoFile, err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, MaxAvatarSize+1))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, CodeNoFile, err.Error())
		return
	}
	if len(data) > MaxAvatarSize {
		ErrorResponse(c, http.StatusBadRequest, CodeFileTooLarge, "Avatar must be 5MB or smaller")
		return
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	pinned, err := h.superheroLogic.UploadAvatar(c.Request.Context(), name, mime, data)
	if err != nil {
		handleError(c, err, CodeUpload)
		return
	}
	SuccessResponse(c, http.StatusOK, "Avatar uploaded successfully", pinned)
}
