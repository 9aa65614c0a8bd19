package generateimage

import "media-studio-server/modules/common/model"

// GenerateRequest - POST /generate-image form fields
type GenerateRequest struct {
	Prompt       string
	Mode         model.Mode
	CurrentImage string // reference of the image to edit, optional
}

// GenerateResult - response body of /generate-image
type GenerateResult struct {
	ImagePath   string       `json:"image_path"`
	RequestType model.Intent `json:"request_type"`
}

// ReferenceImage - image sent alongside the prompt in edit mode
type ReferenceImage struct {
	Data     []byte
	MIMEType string
}
