package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/matrix-org/policyrelay/ai"
	"github.com/matrix-org/policyrelay/config"
	"github.com/matrix-org/policyrelay/moderation"
	"github.com/matrix-org/policyrelay/policy"
	"github.com/openai/openai-go/v3/option"
)

func setupCatalog(instanceConfig *config.InstanceConfig) (*policy.Catalog, error) {
	if instanceConfig.PolicyCatalogPath == "" {
		log.Println("Using the built-in policy catalog")
		return policy.DefaultCatalog(), nil
	}
	catalog, err := policy.LoadCatalogFile(instanceConfig.PolicyCatalogPath)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to load policy catalog from %s", instanceConfig.PolicyCatalogPath), err)
	}
	log.Printf("Loaded %d policy categories from %s", catalog.Len(), instanceConfig.PolicyCatalogPath)
	return catalog, nil
}

func setupInvoker(instanceConfig *config.InstanceConfig) (ai.Invoker, error) {
	switch instanceConfig.ModelProvider {
	case config.ModelProviderCloudflare:
		return ai.NewCloudflareWorkersAI(&ai.CloudflareConfig{
			ApiUrl:     instanceConfig.CloudflareApiUrl,
			AccountId:  instanceConfig.CloudflareAccountId,
			ApiToken:   instanceConfig.CloudflareApiToken,
			MaxRetries: instanceConfig.CloudflareMaxRetries,
		})
	case config.ModelProviderOpenAI:
		return ai.NewOpenAIChat(&ai.OpenAIChatConfig{
			ApiUrl: instanceConfig.OpenAIApiUrl,
			ApiKey: instanceConfig.OpenAIApiKey,
		})
	}
	return nil, fmt.Errorf("unsupported model provider '%s'", instanceConfig.ModelProvider) // "should never happen"
}

func setupClassifier(instanceConfig *config.InstanceConfig, invoker ai.Invoker, catalog *policy.Catalog) (moderation.Classifier, error) {
	switch instanceConfig.ClassifierBackend {
	case config.ClassifierBackendGuard:
		log.Printf("Classifying with guard model %s", instanceConfig.ClassifierModel)
		return moderation.NewGuardClassifier(invoker, instanceConfig.ClassifierModel, catalog)
	case config.ClassifierBackendOmni:
		log.Println("Classifying with the OpenAI moderation endpoint")
		moderator, err := ai.NewOpenAIOmniModeration(instanceConfig.OpenAIApiKey, option.WithBaseURL(instanceConfig.OpenAIApiUrl))
		if err != nil {
			return nil, err
		}
		return moderation.NewOmniClassifier(moderator, catalog)
	}
	return nil, fmt.Errorf("unsupported classifier backend '%s'", instanceConfig.ClassifierBackend) // "should never happen"
}

func setupPipeline(instanceConfig *config.InstanceConfig, catalog *policy.Catalog) (*moderation.Pipeline, error) {
	invoker, err := setupInvoker(instanceConfig)
	if err != nil {
		return nil, errors.Join(errors.New("setupInvoker: failed create"), err)
	}
	log.Printf("Using model provider %s", invoker.Name())

	classifier, err := setupClassifier(instanceConfig, invoker, catalog)
	if err != nil {
		return nil, errors.Join(errors.New("setupClassifier: failed create"), err)
	}

	responder, err := moderation.NewModelResponder(invoker, instanceConfig.ResponderModel, instanceConfig.ResponderSystemPrompt)
	if err != nil {
		return nil, errors.Join(errors.New("NewModelResponder: failed create"), err)
	}

	return moderation.NewPipeline(classifier, responder)
}
