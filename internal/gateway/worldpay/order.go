package worldpay

import (
	"encoding/xml"
	"time"
)

// Request document.

type paymentService struct {
	XMLName      xml.Name `xml:"paymentService"`
	Version      string   `xml:"version,attr"`
	MerchantCode string   `xml:"merchantCode,attr"`
	Submit       *submit  `xml:"submit,omitempty"`
	Modify       *modify  `xml:"modify,omitempty"`
}

type submit struct {
	Order *order `xml:"order"`
}

type order struct {
	OrderCode      string          `xml:"orderCode,attr"`
	Description    string          `xml:"description,omitempty"`
	Amount         *amount         `xml:"amount,omitempty"`
	PaymentDetails *paymentDetails `xml:"paymentDetails,omitempty"`
	Info3DSecure   *info3DSecure   `xml:"info3DSecure,omitempty"`
}

type amount struct {
	Value        string `xml:"value,attr"`
	CurrencyCode string `xml:"currencyCode,attr"`
	Exponent     string `xml:"exponent,attr"`
}

type paymentDetails struct {
	CardSSL *cardSSL `xml:"VISA-SSL"`
}

type cardSSL struct {
	CardNumber  string `xml:"cardNumber"`
	ExpiryMonth string `xml:"expiryDate>date>month"`
	ExpiryYear  string `xml:"expiryDate>date>year"`
	CardHolder  string `xml:"cardHolderName"`
	CVC         string `xml:"cvc"`
}

type info3DSecure struct {
	PaResponse string `xml:"paResponse"`
}

type modify struct {
	OrderModification *orderModification `xml:"orderModification"`
}

type orderModification struct {
	OrderCode string         `xml:"orderCode,attr"`
	Capture   *capture       `xml:"capture,omitempty"`
	Refund    *refundElement `xml:"refund,omitempty"`
	Cancel    *cancelElement `xml:"cancel,omitempty"`
}

type capture struct {
	Amount *amount `xml:"amount"`
}

type refundElement struct {
	Reference string  `xml:"reference,attr,omitempty"`
	Amount    *amount `xml:"amount"`
}

type cancelElement struct{}

// Response document.

type responseService struct {
	XMLName xml.Name `xml:"paymentService"`
	Reply   *reply   `xml:"reply"`
}

type reply struct {
	OrderStatus *orderStatus `xml:"orderStatus"`
	Ok          *okElement   `xml:"ok"`
	Error       *errElement  `xml:"error"`
}

type orderStatus struct {
	OrderCode       string      `xml:"orderCode,attr"`
	Payment         *payment    `xml:"payment"`
	Request3DSecure *anyElement `xml:"requestInfo>request3DSecure"`
}

type payment struct {
	LastEvent string `xml:"lastEvent"`
}

type anyElement struct{}

type okElement struct {
	CaptureReceived *receivedElement `xml:"captureReceived"`
	RefundReceived  *receivedElement `xml:"refundReceived"`
	CancelReceived  *receivedElement `xml:"cancelReceived"`
}

type receivedElement struct {
	OrderCode string `xml:"orderCode,attr"`
}

type errElement struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// Notification document.

type notify struct {
	XMLName xml.Name     `xml:"paymentService"`
	Notify  *notifyInner `xml:"notify"`
}

type notifyInner struct {
	OrderStatusEvents []orderStatusEvent `xml:"orderStatusEvent"`
}

type orderStatusEvent struct {
	OrderCode string   `xml:"orderCode,attr"`
	Payment   *payment `xml:"payment"`
	Journal   *journal `xml:"journal"`
}

type journal struct {
	BookingDate *bookingDate `xml:"bookingDate>date"`
}

type bookingDate struct {
	DayOfMonth string `xml:"dayOfMonth,attr"`
	Month      string `xml:"month,attr"`
	Year       string `xml:"year,attr"`
}

func (ev orderStatusEvent) bookingDate() time.Time {
	if ev.Journal == nil || ev.Journal.BookingDate == nil {
		return time.Now()
	}
	d := ev.Journal.BookingDate
	t, err := time.Parse("2006-1-2", d.Year+"-"+d.Month+"-"+d.DayOfMonth)
	if err != nil {
		return time.Now()
	}
	return t
}
