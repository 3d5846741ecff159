package handler

// 通用响应结构
type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// ErrorBody 错误信息，Details 携带字段级校验结果
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// 分页信息结构
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

// 错误码
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidAddress  = "INVALID_ADDRESS"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeNoFile          = "NO_FILE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeCreation        = "CREATION_ERROR"
	CodeUpload          = "UPLOAD_ERROR"
	CodeFetch           = "FETCH_ERROR"
	CodeCheck           = "CHECK_ERROR"
	CodeGrantRole       = "GRANT_ROLE_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotOwner        = "NOT_OWNER"
)

// MaxAvatarSize 头像文件上限
const MaxAvatarSize = 5 << 20

// 超级英雄相关响应模型

// IsSuperheroResponse 角色检查结果
type IsSuperheroResponse struct {
	Address     string `json:"address"`
	IsSuperhero bool   `json:"isSuperhero"`
}

// TransactionResponse 只返回交易信息的写操作
type TransactionResponse struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
}

// 创意相关请求模型

// RetrieveContentRequest 读取已购正文
type RetrieveContentRequest struct {
	BuyerAddress string `json:"buyerAddress"`
}

// 链上工具响应模型

type BlockNumberResponse struct {
	BlockNumber uint64 `json:"blockNumber"`
}
