// Package xmlutil parses the S3 GetObjectAttributes XML response the S3
// backend reads size from. Trimmed from the teacher's much larger XML
// response vocabulary (bucket/object listings, ACLs) down to the single
// element scatterstore's S3 backend needs.
package xmlutil

import "encoding/xml"

// ObjectAttributes is the XML structure returned by an S3 `?attributes`
// GET request. Only ObjectSize is consumed by the S3 backend; the other
// fields a real S3-compatible host may include are ignored by
// encoding/xml's default unmarshaling behavior.
type ObjectAttributes struct {
	XMLName    xml.Name `xml:"GetObjectAttributesResponse"`
	ObjectSize int64    `xml:"ObjectSize"`
}

// ParseObjectAttributes extracts the object size from a GetObjectAttributes
// response body.
func ParseObjectAttributes(body []byte) (int64, error) {
	var attrs ObjectAttributes
	if err := xml.Unmarshal(body, &attrs); err != nil {
		return 0, err
	}
	return attrs.ObjectSize, nil
}
