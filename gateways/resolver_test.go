package gateways

import (
	"testing"

	"github.com/donatehub/donatehub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardMethod() models.PaymentMethod {
	m, _ := models.GetPaymentMethod("bank_card")
	return m
}

func TestMergeCredentialsLaterLayersWin(t *testing.T) {
	merged := MergeCredentials(
		Credentials{"key": "default", "secret": "default-secret"},
		Credentials{"key": "org"},
		Credentials{"key": "partner", "extra": "x"},
	)

	assert.Equal(t, "partner", merged["key"])
	assert.Equal(t, "default-secret", merged["secret"])
	assert.Equal(t, "x", merged["extra"])
}

func TestMergeCredentialsEmptyValuesNeverErase(t *testing.T) {
	merged := MergeCredentials(
		Credentials{"key": "default"},
		Credentials{"key": ""},
	)
	assert.Equal(t, "default", merged["key"])
}

func TestSelectProviderOverrideWins(t *testing.T) {
	org := &models.Organization{EnabledGateways: "cloudpayments"}
	partner := &models.PartnerMerchant{Provider: "tinkoff", IsActive: true}

	provider, err := SelectProvider("razorpay", partner, org, cardMethod())
	require.NoError(t, err)
	assert.Equal(t, "razorpay", provider)
}

func TestSelectProviderUnknownOverrideFails(t *testing.T) {
	_, err := SelectProvider("stripe", nil, nil, cardMethod())
	assert.Error(t, err, "an unsupported override must fail, not fall back")
}

func TestSelectProviderPartnerBeatsOrg(t *testing.T) {
	org := &models.Organization{EnabledGateways: "cloudpayments"}
	partner := &models.PartnerMerchant{Provider: "tinkoff", IsActive: true}

	provider, err := SelectProvider("", partner, org, cardMethod())
	require.NoError(t, err)
	assert.Equal(t, "tinkoff", provider)
}

func TestSelectProviderInactivePartnerSkipped(t *testing.T) {
	org := &models.Organization{EnabledGateways: "tinkoff,cloudpayments"}
	partner := &models.PartnerMerchant{Provider: "razorpay", IsActive: false}

	provider, err := SelectProvider("", partner, org, cardMethod())
	require.NoError(t, err)
	assert.Equal(t, "tinkoff", provider)
}

func TestSelectProviderOrgListOrderRespected(t *testing.T) {
	org := &models.Organization{EnabledGateways: " razorpay , cloudpayments"}

	provider, err := SelectProvider("", nil, org, cardMethod())
	require.NoError(t, err)
	assert.Equal(t, "razorpay", provider)
}

func TestSelectProviderOrgListAllUnsupportedFails(t *testing.T) {
	org := &models.Organization{EnabledGateways: "stripe,paypal"}

	_, err := SelectProvider("", nil, org, cardMethod())
	assert.Error(t, err, "unsupported org gateways must not fall through to the method default")
}

func TestSelectProviderFallsBackToMethodDefault(t *testing.T) {
	provider, err := SelectProvider("", nil, &models.Organization{}, cardMethod())
	require.NoError(t, err)
	assert.Equal(t, "cloudpayments", provider)
}

func TestResolveLayeredMerge(t *testing.T) {
	org := &models.Organization{
		EnabledGateways: "cloudpayments",
		GatewaySettings: models.JSONMap{
			"cloudpayments": map[string]interface{}{
				"public_id":  "org-public",
				"api_secret": "org-secret",
			},
		},
	}
	partner := &models.PartnerMerchant{
		Provider: "cloudpayments",
		IsActive: true,
		Credentials: models.JSONMap{
			"public_id": "partner-public",
		},
	}

	res, err := Resolve(org, cardMethod(), "", partner, nil)
	require.NoError(t, err)
	assert.Equal(t, "cloudpayments", res.Provider)
	assert.Equal(t, "partner-public", res.Credentials["public_id"])
	assert.Equal(t, "org-secret", res.Credentials["api_secret"])
	require.NotNil(t, res.Gateway)
	assert.Equal(t, "cloudpayments", res.Gateway.Name())
}

func TestResolveRequestOverridesWinOverAll(t *testing.T) {
	org := &models.Organization{
		GatewaySettings: models.JSONMap{
			"tinkoff": map[string]interface{}{
				"terminal_key": "org-terminal",
				"password":     "org-password",
			},
		},
	}

	res, err := Resolve(org, cardMethod(), "tinkoff", nil, Credentials{"terminal_key": "request-terminal"})
	require.NoError(t, err)
	assert.Equal(t, "request-terminal", res.Credentials["terminal_key"])
	assert.Equal(t, "org-password", res.Credentials["password"])
}

func TestResolveMissingCredentialsIsTypedFailure(t *testing.T) {
	org := &models.Organization{EnabledGateways: "cloudpayments"}

	_, err := Resolve(org, cardMethod(), "", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cloudpayments")
}

func TestResolvePartnerCredsIgnoredForOtherProvider(t *testing.T) {
	// Partner creds from one provider must never leak into another.
	org := &models.Organization{
		GatewaySettings: models.JSONMap{
			"tinkoff": map[string]interface{}{
				"terminal_key": "org-terminal",
				"password":     "org-password",
			},
		},
	}
	partner := &models.PartnerMerchant{
		Provider: "cloudpayments",
		IsActive: false,
		Credentials: models.JSONMap{
			"terminal_key": "partner-terminal",
		},
	}

	res, err := Resolve(org, cardMethod(), "tinkoff", partner, nil)
	require.NoError(t, err)
	assert.Equal(t, "org-terminal", res.Credentials["terminal_key"])
}
