package config

const (
	EnvPrefix = "MERCH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "MERCH_APP_ENV"
	EnvPort   = "MERCH_APP_PORT"

	EnvDBDSN  = "MERCH_DB_DSN"
	EnvDBHost = "MERCH_DB_HOST"
	EnvDBUser = "MERCH_DB_USER"
	EnvDBName = "MERCH_DB_NAME"

	EnvUseSQLite = "MERCH_USE_SQLITE"

	EnvRedisURL = "MERCH_REDIS_URL"

	EnvJWTSecret  = "MERCH_JWT_SECRET"
	EnvJWTIssuer  = "MERCH_JWT_ISSUER"
	EnvJWTExpMins = "MERCH_JWT_EXPIRATION_MINUTES"

	EnvRazorpayKeyID         = "MERCH_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret     = "MERCH_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookSecret = "MERCH_RAZORPAY_WEBHOOK_SECRET"

	EnvCheckoutCurrency          = "MERCH_CHECKOUT_CURRENCY"
	EnvCheckoutDeliveryCharge    = "MERCH_CHECKOUT_DELIVERY_CHARGE"
	EnvCheckoutFreeDelivery      = "MERCH_CHECKOUT_FREE_DELIVERY_THRESHOLD"
	EnvCheckoutGatewayFeePercent = "MERCH_CHECKOUT_GATEWAY_FEE_PERCENT"
	EnvCheckoutTransferFeePct    = "MERCH_CHECKOUT_TRANSFER_FEE_PERCENT"
	EnvCheckoutTaxPercent        = "MERCH_CHECKOUT_TAX_PERCENT"

	EnvMaxOrderPending = "MERCH_MAX_ORDER_PENDING"
	EnvCronInterval    = "MERCH_CRON_INTERVAL"

	EnvGCPProjectID = "MERCH_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic     = "MERCH_PUBSUB_ORDERS_TOPIC"
	EnvPubSubNotificationSub = "MERCH_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsSub    = "MERCH_PUBSUB_ANALYTICS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
