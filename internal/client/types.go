package client

// PersonLink is one person found in an image.
type PersonLink struct {
	PersonID   int64   `json:"person_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// UploadResult is the server's answer to an image upload.
type UploadResult struct {
	ImageID int64        `json:"image_id"`
	Caption string       `json:"caption"`
	Tags    []string     `json:"tags"`
	Persons []PersonLink `json:"persons"`
}

// Description is the caption and tags of an image.
type Description struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

// Identification lists the persons linked to an image.
type Identification struct {
	Persons []PersonLink `json:"persons"`
}

// PersonImage is one image a person was found in.
type PersonImage struct {
	ImageID    int64   `json:"image_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Person is a registry identity without its signatures.
type Person struct {
	ID            int64         `json:"id"`
	HasFace       bool          `json:"has_face"`
	HasAppearance bool          `json:"has_appearance"`
	Images        []PersonImage `json:"images"`
}
