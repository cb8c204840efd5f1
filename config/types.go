package config

import (
	"fmt"
)

type ModelProvider string // Implements envconfig.Decoder

const ModelProviderCloudflare ModelProvider = "cloudflare"
const ModelProviderOpenAI ModelProvider = "openai"

func (p *ModelProvider) Decode(value string) error {
	switch value {
	case "":
		fallthrough
	case string(ModelProviderCloudflare):
		*p = ModelProviderCloudflare
		return nil
	case string(ModelProviderOpenAI):
		*p = ModelProviderOpenAI
		return nil
	}

	return fmt.Errorf("unsupported model provider '%s'", value)
}

type ClassifierBackend string // Implements envconfig.Decoder

const ClassifierBackendGuard ClassifierBackend = "guard"
const ClassifierBackendOmni ClassifierBackend = "omni"

func (b *ClassifierBackend) Decode(value string) error {
	switch value {
	case "":
		fallthrough
	case string(ClassifierBackendGuard):
		*b = ClassifierBackendGuard
		return nil
	case string(ClassifierBackendOmni):
		*b = ClassifierBackendOmni
		return nil
	}

	return fmt.Errorf("unsupported classifier backend '%s'", value)
}
