package gateways

import (
	"fmt"
	"os"
	"strings"

	"github.com/donatehub/donatehub/models"
)

// Resolution is the outcome of provider selection: a concrete gateway
// plus the fully merged credential set it should run with.
type Resolution struct {
	Provider    string
	Gateway     Gateway
	Credentials Credentials
}

// requiredCredentials lists the keys a provider cannot run without.
// Resolution fails rather than calling a gateway with partial secrets.
var requiredCredentials = map[string][]string{
	"cloudpayments": {"public_id", "api_secret"},
	"tinkoff":       {"terminal_key", "password"},
	"razorpay":      {"key", "secret"},
	"test":          {},
}

// envCredentials holds the payment method defaults: the platform-level
// credential set configured through the environment per provider.
var envCredentials = map[string]map[string]string{
	"cloudpayments": {
		"public_id":  "CLOUDPAYMENTS_PUBLIC_ID",
		"api_secret": "CLOUDPAYMENTS_API_SECRET",
	},
	"tinkoff": {
		"terminal_key": "TINKOFF_TERMINAL_KEY",
		"password":     "TINKOFF_PASSWORD",
	},
	"razorpay": {
		"key":            "RAZORPAY_KEY",
		"secret":         "RAZORPAY_SECRET",
		"webhook_secret": "RAZORPAY_WEBHOOK_SECRET",
	},
	"test": {
		"secret": "TEST_GATEWAY_SECRET",
	},
}

// MergeCredentials overlays credential layers left to right; later
// layers win. Empty values never erase earlier ones.
func MergeCredentials(layers ...Credentials) Credentials {
	merged := Credentials{}
	for _, layer := range layers {
		for k, v := range layer {
			if v == "" {
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

// defaultCredentials reads the method-default credential layer from the
// environment for a provider.
func defaultCredentials(provider string) Credentials {
	creds := Credentials{}
	for key, envName := range envCredentials[provider] {
		if v := os.Getenv(envName); v != "" {
			creds[key] = v
		}
	}
	return creds
}

// organizationCredentials extracts the org's stored credential map for
// a provider from its gateway settings.
func organizationCredentials(org *models.Organization, provider string) Credentials {
	creds := Credentials{}
	if org == nil || org.GatewaySettings == nil {
		return creds
	}
	nested, ok := org.GatewaySettings[provider].(map[string]interface{})
	if !ok {
		return creds
	}
	for k, v := range nested {
		if s, ok := v.(string); ok {
			creds[k] = s
		}
	}
	return creds
}

func jsonMapCredentials(m models.JSONMap) Credentials {
	creds := Credentials{}
	for k, v := range m {
		if s, ok := v.(string); ok {
			creds[k] = s
		}
	}
	return creds
}

// SelectProvider picks the provider for a payment request, in priority
// order: explicit request override, active partner merchant, the
// organization's enabled gateway list, then the payment method's
// default. There is no fallback past the first match: a billing call
// must never silently run through a different provider than intended.
func SelectProvider(override string, partner *models.PartnerMerchant, org *models.Organization, method models.PaymentMethod) (string, error) {
	if override != "" {
		if _, ok := registry[override]; !ok {
			return "", fmt.Errorf("requested provider %q is not supported", override)
		}
		return override, nil
	}

	if partner != nil && partner.IsActive {
		if _, ok := registry[partner.Provider]; !ok {
			return "", fmt.Errorf("partner merchant provider %q is not supported", partner.Provider)
		}
		return partner.Provider, nil
	}

	if org != nil && org.EnabledGateways != "" {
		for _, name := range strings.Split(org.EnabledGateways, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := registry[name]; ok {
				return name, nil
			}
		}
		return "", fmt.Errorf("none of the organization's enabled gateways (%s) are supported", org.EnabledGateways)
	}

	if method.DefaultProvider != "" {
		if _, ok := registry[method.DefaultProvider]; !ok {
			return "", fmt.Errorf("default provider %q for method %q is not supported", method.DefaultProvider, method.Slug)
		}
		return method.DefaultProvider, nil
	}

	return "", fmt.Errorf("no payment provider available for method %q", method.Slug)
}

// Resolve selects a provider and materializes its gateway with the
// layered credential merge: method defaults, then organization
// settings, then partner merchant credentials, then request overrides.
func Resolve(org *models.Organization, method models.PaymentMethod, override string, partner *models.PartnerMerchant, requestCreds Credentials) (*Resolution, error) {
	provider, err := SelectProvider(override, partner, org, method)
	if err != nil {
		return nil, err
	}

	gateway, ok := Get(provider)
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered", provider)
	}

	var partnerCreds Credentials
	if partner != nil && partner.IsActive && partner.Provider == provider {
		partnerCreds = jsonMapCredentials(partner.Credentials)
	}

	creds := MergeCredentials(
		defaultCredentials(provider),
		organizationCredentials(org, provider),
		partnerCreds,
		requestCreds,
	)

	for _, key := range requiredCredentials[provider] {
		if creds[key] == "" {
			return nil, fmt.Errorf("no usable %s credentials: missing %q", provider, key)
		}
	}

	return &Resolution{Provider: provider, Gateway: gateway, Credentials: creds}, nil
}
