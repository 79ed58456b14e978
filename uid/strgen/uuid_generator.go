package strgen

import (
	"encoding/hex"

	"github.com/google/uuid"
)

type UUIDGeneratorOptions struct {
	// Version v1, v4, v6 或 v7
	Version string `cfg:"version" def:"v4"`
	// WithHyphens 是否包含中划线
	WithHyphens bool `cfg:"withHyphens"`
}

type UUIDGenerator struct {
	newUUID     func() (uuid.UUID, error)
	withHyphens bool
}

var uuidVersions = map[string]func() (uuid.UUID, error){
	"v1": uuid.NewUUID,
	"v4": uuid.NewRandom,
	"v6": uuid.NewV6,
	"v7": uuid.NewV7,
}

func NewUUIDGeneratorWithOptions(options *UUIDGeneratorOptions) *UUIDGenerator {
	if options == nil {
		options = &UUIDGeneratorOptions{}
	}
	newUUID, ok := uuidVersions[options.Version]
	if !ok {
		newUUID = uuid.NewRandom
	}
	return &UUIDGenerator{newUUID: newUUID, withHyphens: options.WithHyphens}
}

func (g *UUIDGenerator) Generate() string {
	u := uuid.Must(g.newUUID())
	if g.withHyphens {
		return u.String()
	}
	return hex.EncodeToString(u[:])
}
