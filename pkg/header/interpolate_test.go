package header

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
)

var _ = Describe("Interpolate", func() {
	user := &resources.BasicUserData{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Name:     "J. Doe",
		Role:     "Member",
	}

	type interpolateTableInput struct {
		rawTemplate     string
		user            *resources.BasicUserData
		expectedHeaders map[string]string
		expectedOK      bool
	}

	DescribeTable("with a template",
		func(in interpolateTableInput) {
			headers, ok := Interpolate(in.rawTemplate, in.user)
			Expect(ok).To(Equal(in.expectedOK))
			if in.expectedOK && in.expectedHeaders != nil {
				Expect(headers).To(Equal(in.expectedHeaders))
			}
		},
		Entry("empty template yields no headers", interpolateTableInput{
			rawTemplate: "",
			user:        user,
			expectedOK:  true,
		}),
		Entry("array shape", interpolateTableInput{
			rawTemplate: `[{"name":"X-User","value":"{{username}}"},{"name":"X-Email","value":"{{email}}"}]`,
			user:        user,
			expectedHeaders: map[string]string{
				"X-User":  "jdoe",
				"X-Email": "jdoe@example.com",
			},
			expectedOK: true,
		}),
		Entry("flat object shape", interpolateTableInput{
			rawTemplate: `{"X-Name":"{{name}}","X-Role":"{{role}}"}`,
			user:        user,
			expectedHeaders: map[string]string{
				"X-Name": "J. Doe",
				"X-Role": "Member",
			},
			expectedOK: true,
		}),
		Entry("literal values pass through", interpolateTableInput{
			rawTemplate: `{"X-Static":"fixed-value"}`,
			user:        user,
			expectedHeaders: map[string]string{
				"X-Static": "fixed-value",
			},
			expectedOK: true,
		}),
		Entry("nil user expands to empty strings", interpolateTableInput{
			rawTemplate: `{"X-User":"{{username}}","X-Role":"{{role}}"}`,
			user:        nil,
			expectedHeaders: map[string]string{
				"X-User": "",
				"X-Role": "",
			},
			expectedOK: true,
		}),
		Entry("malformed JSON fails open", interpolateTableInput{
			rawTemplate: `{"X-User": `,
			user:        user,
			expectedOK:  false,
		}),
		Entry("array entry missing value fails", interpolateTableInput{
			rawTemplate: `[{"name":"X-User"}]`,
			user:        user,
			expectedOK:  false,
		}),
		Entry("non-string object value fails", interpolateTableInput{
			rawTemplate: `{"X-Count": 3}`,
			user:        user,
			expectedOK:  false,
		}),
	)

	It("strips CR and LF out of substituted identity fields", func() {
		evil := &resources.BasicUserData{
			Username: "jdoe\r\nX-Injected: true",
			Email:    "a@b\nSet-Cookie: hacked",
		}
		headers, ok := Interpolate(`{"X-User":"{{username}}","X-Email":"{{email}}"}`, evil)
		Expect(ok).To(BeTrue())
		Expect(headers["X-User"]).To(Equal("jdoeX-Injected: true"))
		Expect(headers["X-Email"]).To(Equal("a@bSet-Cookie: hacked"))
		for _, v := range headers {
			Expect(v).NotTo(ContainSubstring("\r"))
			Expect(v).NotTo(ContainSubstring("\n"))
		}
	})

	It("strips CR and LF written literally in the template value", func() {
		headers, ok := Interpolate(`{"X-A":"line1\r\nline2"}`, user)
		Expect(ok).To(BeTrue())
		Expect(headers["X-A"]).To(Equal("line1line2"))
	})
})
