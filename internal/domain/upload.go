package domain

// UploadResult is the body returned by POST /upload. Style keys are omitted
// when stylization was skipped or failed.
type UploadResult struct {
	Original  string            `json:"original"`
	Converted map[string]string `json:"converted"`
	Text      string            `json:"text"`
	Celeba    string            `json:"celeba,omitempty"`
	FaceV1    string            `json:"facev1,omitempty"`
	FaceV2    string            `json:"facev2,omitempty"`
	Paprika   string            `json:"paprika,omitempty"`
}

// SetStyle records the URL of a stylized variant.
func (r *UploadResult) SetStyle(variant, url string) {
	switch variant {
	case StyleCeleba:
		r.Celeba = url
	case StyleFaceV1:
		r.FaceV1 = url
	case StyleFaceV2:
		r.FaceV2 = url
	case StylePaprika:
		r.Paprika = url
	}
}
