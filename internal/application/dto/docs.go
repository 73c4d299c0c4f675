package dto

type GetOpenAPISpecQuery struct{}

type GetOpenAPISpecOutput struct {
	Content     []byte
	ContentType string
}
