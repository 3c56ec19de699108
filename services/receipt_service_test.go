package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
)

func TestReceiptNumber(t *testing.T) {
	at := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "RCP-20240309-6F1C2B1E", ReceiptNumber("6f1c2b1e-aaaa-4000-8000-000000000001", at))
}

func TestGenerateReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 2, "Asha")

	_, err := env.receipts.Generate(ctx, sess.ID)
	assert.Equal(t, utils.CodeReceiptNotFound, utils.ErrorCode(err))

	pizza := env.menuID("Margherita Pizza")
	_, err = env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{
		{MenuItemID: &pizza, Quantity: 1, Customizations: []CustomizationInput{{Name: "Extra Cheese"}}},
		customLine("Water", 1, 2),
	}})
	require.NoError(t, err)
	placeOrders(t, env, sess.ID, 5)

	paid, err := env.ledger.UnpaidOrders(ctx, sess.ID)
	require.NoError(t, err)
	_, err = env.payments.ProcessCounterPayment(ctx, CounterPaymentInput{SessionID: sess.ID, OrderIDs: []uint{paid[0].ID}, ReceivedBy: "Cam"})
	require.NoError(t, err)

	receipt, err := env.receipts.Generate(ctx, sess.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^RCP-\d{8}-[0-9A-F]{8}$`, receipt.ReceiptNumber)
	assert.Equal(t, "QR Bistro", receipt.RestaurantName)
	assert.Equal(t, "T2", receipt.TableLabel)
	assert.Equal(t, "Asha", receipt.CustomerName)

	lines := receipt.Items.Data()
	require.Len(t, lines, 2)
	assert.Equal(t, "Margherita Pizza", lines[0].Name)
	assert.Equal(t, []string{"Extra Cheese"}, lines[0].Customizations)

	breakdown := receipt.Breakdown.Data()
	assert.Equal(t, 15.5, breakdown.Subtotal)
	assert.Equal(t, 1.55, breakdown.Tax)
	assert.Equal(t, 0.78, breakdown.ServiceCharge)
	assert.Equal(t, 17.83, breakdown.Total)
	// the unpaid order stays off the receipt
	assert.Len(t, breakdown.Orders, 1)

	// write once
	again, err := env.receipts.Generate(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt.ID, again.ID)

	byID, err := env.receipts.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt.ReceiptNumber, byID.ReceiptNumber)

	_, err = env.receipts.GetReceiptForSession(ctx, "missing")
	assert.Equal(t, utils.CodeReceiptNotFound, utils.ErrorCode(err))
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ReceiptArchiver(t *testing.T) {
	putter := &fakePutter{}
	archiver := &S3ReceiptArchiver{client: putter, bucket: "receipts-bucket"}

	receipt := &models.Receipt{
		SessionID:     "sess-1",
		ReceiptNumber: "RCP-20240309-ABCDEF12",
		CustomerName:  "Asha",
		Total:         1234.5,
		GeneratedAt:   time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC),
	}
	require.NoError(t, archiver.Archive(context.Background(), receipt))

	assert.Equal(t, "receipts-bucket", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "receipts/2024/03/09/RCP-20240309-ABCDEF12.json", aws.ToString(putter.input.Key))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))

	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(bytes.NewReader(putter.body)).Decode(&doc))
	assert.Equal(t, "$1,234.50", doc["total"])
	assert.Equal(t, "Asha", doc["customer_name"])
}
