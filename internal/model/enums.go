package model

type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeDocument MediaType = "document"
	MediaTypeSlides   MediaType = "slides"
)

func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio, MediaTypeDocument, MediaTypeSlides:
		return true
	}
	return false
}

type Transition string

const (
	TransitionNone  Transition = "none"
	TransitionFade  Transition = "fade"
	TransitionSlide Transition = "slide"
	TransitionZoom  Transition = "zoom"
	TransitionFlip  Transition = "flip"
)
