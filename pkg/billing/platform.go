package billing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Platform identifies the store a purchase was made through.
type Platform string

const (
	PlatformAndroidPlaystore Platform = "android-playstore"
	PlatformAppStore         Platform = "app-store"
	PlatformPayPal           Platform = "paypal"
)

// ParsePlatform validates a platform tag received from clients.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.TrimSpace(s)); p {
	case PlatformAndroidPlaystore, PlatformAppStore, PlatformPayPal:
		return p, nil
	default:
		return "", InvalidInput(ErrUnknownPlatform.Error(), fmt.Errorf("%w: %q", ErrUnknownPlatform, s))
	}
}

func (p Platform) String() string { return string(p) }

// Purchase is the provider-specific credential submitted by a client app.
// It is a closed set: AndroidPurchase, AppStorePurchase and PayPalPurchase.
type Purchase interface {
	Platform() Platform
	ProductID() string
	isPurchase()
}

// AndroidPurchase is a Google Play subscription purchase.
type AndroidPurchase struct {
	Product       string // Play subscription product id
	PurchaseToken string // Token issued by Play Billing
}

func (AndroidPurchase) Platform() Platform  { return PlatformAndroidPlaystore }
func (p AndroidPurchase) ProductID() string { return p.Product }
func (AndroidPurchase) isPurchase()         {}

// AppStorePurchase is an Apple purchase. Receipt is the base64 app receipt;
// TransactionID is used instead when the client only knows the original
// transaction id.
type AppStorePurchase struct {
	Product       string
	Receipt       string
	TransactionID string
}

func (AppStorePurchase) Platform() Platform  { return PlatformAppStore }
func (p AppStorePurchase) ProductID() string { return p.Product }
func (AppStorePurchase) isPurchase()         {}

// PayPalPurchase is a PayPal billing subscription.
type PayPalPurchase struct {
	Product        string
	SubscriptionID string
}

func (PayPalPurchase) Platform() Platform  { return PlatformPayPal }
func (p PayPalPurchase) ProductID() string { return p.Product }
func (PayPalPurchase) isPurchase()         {}

// ParsePurchase builds a Purchase from the opaque nativePurchase object sent
// by the client purchase plugin. A nativePurchase.receipt given as a JSON
// string is decoded when possible and passed through untouched otherwise.
func ParsePurchase(platform Platform, native map[string]any) (Purchase, error) {
	if native == nil {
		return nil, InvalidInput("nativePurchase is required", nil)
	}
	NormalizeReceipt(native)

	switch platform {
	case PlatformAndroidPlaystore:
		p := AndroidPurchase{
			Product:       stringField(native, "productId"),
			PurchaseToken: stringField(native, "purchaseToken"),
		}
		if receipt, ok := native["receipt"].(map[string]any); ok {
			if p.Product == "" {
				p.Product = stringField(receipt, "productId")
			}
			if p.PurchaseToken == "" {
				p.PurchaseToken = stringField(receipt, "purchaseToken")
			}
		}
		return p, nil
	case PlatformAppStore:
		p := AppStorePurchase{
			Product:       stringField(native, "productId"),
			Receipt:       stringField(native, "appStoreReceipt"),
			TransactionID: stringField(native, "transactionId"),
		}
		if p.Receipt == "" {
			p.Receipt = stringField(native, "receipt")
		}
		if p.TransactionID == "" {
			p.TransactionID = stringField(native, "originalTransactionId")
		}
		return p, nil
	case PlatformPayPal:
		p := PayPalPurchase{
			Product:        stringField(native, "productId"),
			SubscriptionID: stringField(native, "subscriptionId"),
		}
		if p.SubscriptionID == "" {
			p.SubscriptionID = stringField(native, "id")
		}
		return p, nil
	default:
		return nil, InvalidInput(ErrUnknownPlatform.Error(), ErrUnknownPlatform)
	}
}

// NormalizeReceipt decodes a string nativePurchase.receipt holding JSON into
// an object in place. Non-JSON receipts are left as they are.
func NormalizeReceipt(native map[string]any) {
	raw, ok := native["receipt"].(string)
	if !ok || raw == "" {
		return
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return
	}
	native["receipt"] = decoded
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}
