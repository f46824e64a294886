package tracsdk

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// iso8601Layout is the dateTime format Trac emits, without separators.
const iso8601Layout = "20060102T15:04:05"

// encodeMethodCall renders an XML-RPC methodCall payload. Supported argument
// types match what the Trac API takes: string, int, bool and string maps.
func encodeMethodCall(method string, args ...any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString("<methodCall><methodName>")
	if err := xml.EscapeText(&b, []byte(method)); err != nil {
		return nil, err
	}
	b.WriteString("</methodName><params>")
	for _, arg := range args {
		b.WriteString("<param>")
		if err := encodeValue(&b, arg); err != nil {
			return nil, err
		}
		b.WriteString("</param>")
	}
	b.WriteString("</params></methodCall>")
	return b.Bytes(), nil
}

func encodeValue(b *bytes.Buffer, arg any) error {
	b.WriteString("<value>")
	switch v := arg.(type) {
	case string:
		b.WriteString("<string>")
		if err := xml.EscapeText(b, []byte(v)); err != nil {
			return err
		}
		b.WriteString("</string>")
	case int:
		fmt.Fprintf(b, "<int>%d</int>", v)
	case bool:
		if v {
			b.WriteString("<boolean>1</boolean>")
		} else {
			b.WriteString("<boolean>0</boolean>")
		}
	case map[string]string:
		b.WriteString("<struct>")
		for _, key := range sortedKeys(v) {
			b.WriteString("<member><name>")
			if err := xml.EscapeText(b, []byte(key)); err != nil {
				return err
			}
			b.WriteString("</name><value><string>")
			if err := xml.EscapeText(b, []byte(v[key])); err != nil {
				return err
			}
			b.WriteString("</string></value></member>")
		}
		b.WriteString("</struct>")
	case map[string]any:
		b.WriteString("<struct>")
		for _, key := range sortedKeys(v) {
			b.WriteString("<member><name>")
			if err := xml.EscapeText(b, []byte(key)); err != nil {
				return err
			}
			b.WriteString("</name>")
			if err := encodeValue(b, v[key]); err != nil {
				return err
			}
			b.WriteString("</member>")
		}
		b.WriteString("</struct>")
	default:
		return fmt.Errorf("unsupported xmlrpc argument type %T", arg)
	}
	b.WriteString("</value>")
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// rpcValue is one decoded XML-RPC <value>. Exactly one field is set
// depending on the wire type; untyped values default to string per spec.
type rpcValue struct {
	String   *string    `xml:"string"`
	Int      *string    `xml:"int"`
	I4       *string    `xml:"i4"`
	Boolean  *string    `xml:"boolean"`
	Double   *string    `xml:"double"`
	DateTime *string    `xml:"dateTime.iso8601"`
	Base64   *string    `xml:"base64"`
	Array    *rpcArray  `xml:"array"`
	Struct   *rpcStruct `xml:"struct"`
	Raw      string     `xml:",chardata"`
}

type rpcArray struct {
	Values []rpcValue `xml:"data>value"`
}

type rpcStruct struct {
	Members []rpcMember `xml:"member"`
}

type rpcMember struct {
	Name  string   `xml:"name"`
	Value rpcValue `xml:"value"`
}

func (v *rpcValue) Str() string {
	if v.String != nil {
		return *v.String
	}
	return strings.TrimSpace(v.Raw)
}

func (v *rpcValue) IntVal() int {
	raw := ""
	switch {
	case v.Int != nil:
		raw = *v.Int
	case v.I4 != nil:
		raw = *v.I4
	default:
		raw = strings.TrimSpace(v.Raw)
	}
	n, _ := strconv.Atoi(strings.TrimSpace(raw))
	return n
}

func (v *rpcValue) BoolVal() bool {
	if v.Boolean == nil {
		return false
	}
	return strings.TrimSpace(*v.Boolean) == "1"
}

func (v *rpcValue) TimeVal() time.Time {
	if v.DateTime == nil {
		return time.Time{}
	}
	t, err := time.Parse(iso8601Layout, strings.TrimSpace(*v.DateTime))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (v *rpcValue) ArrayVals() []rpcValue {
	if v.Array == nil {
		return nil
	}
	return v.Array.Values
}

func (v *rpcValue) Member(name string) *rpcValue {
	if v.Struct == nil {
		return nil
	}
	for i := range v.Struct.Members {
		if v.Struct.Members[i].Name == name {
			return &v.Struct.Members[i].Value
		}
	}
	return nil
}

type methodResponse struct {
	XMLName xml.Name   `xml:"methodResponse"`
	Params  []rpcValue `xml:"params>param>value"`
	Fault   *rpcValue  `xml:"fault>value"`
}

// decodeMethodResponse parses a response body into either the first result
// value or a classified fault error.
func decodeMethodResponse(body []byte) (*rpcValue, error) {
	var resp methodResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed xmlrpc response: %w", err)
	}
	if resp.Fault != nil {
		code := 0
		message := ""
		if v := resp.Fault.Member("faultCode"); v != nil {
			code = v.IntVal()
		}
		if v := resp.Fault.Member("faultString"); v != nil {
			message = v.Str()
		}
		return nil, classifyFault(code, message)
	}
	if len(resp.Params) == 0 {
		return nil, fmt.Errorf("xmlrpc response carries no result")
	}
	return &resp.Params[0], nil
}
