package itest

import (
	"net/http"
	"net/url"
	"testing"
)

type memberEnvelope struct {
	Member struct {
		MemberId           string  `json:"memberId"`
		Reference          string  `json:"reference"`
		Status             string  `json:"status"`
		HasSubmittedForm   bool    `json:"hasSubmittedForm"`
		MustChangePassword bool    `json:"mustChangePassword"`
		FormCode           *string `json:"formCode"`
		Profile            struct {
			Address string `json:"address"`
		} `json:"profile"`
	} `json:"member"`
}

func TestMembers_ITest(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			srv := newTestServer(t, b)

			// Missing auth header => 401
			{
				status, body, hdr := srv.doJSON(t, http.MethodGet, "/members/me", "", nil)
				requireErrorCode(t, status, body, http.StatusUnauthorized, "UNAUTHORIZED")
				requireHeaderPresent(t, hdr, "Content-Type")
			}

			// Unknown subjects have no member record.
			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/members/me", "itest|stranger", nil)
				requireErrorCode(t, status, body, http.StatusNotFound, "MEMBER_NOT_PROVISIONED")
			}

			application := map[string]any{
				"nationalId": "sn-778899",
				"profile": map[string]any{
					"firstName":     "  Adama ",
					"lastName":      "Traoré",
					"phone":         "+221 77 123 45 67",
					"email":         "adama@example.org",
					"address":       "Sicap Liberté 6",
					"profession":    "Architect",
					"residenceCity": "Dakar",
				},
				"documentUrl": "https://files.example.org/adama/id.pdf",
			}

			// Public intake.
			var created memberEnvelope
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/applications", "", application)
				requireStatus(t, status, body, http.StatusCreated)
				created = mustUnmarshal[memberEnvelope](t, body)
				if created.Member.Status != "PENDING" || !created.Member.HasSubmittedForm {
					t.Fatalf("unexpected member after intake: %s", string(body))
				}
			}

			// Status query by phone and reference.
			{
				q := url.Values{"phone": {"+221771234567"}, "reference": {created.Member.Reference}}
				status, body, _ := srv.doJSON(t, http.MethodGet, "/applications/status?"+q.Encode(), "", nil)
				requireStatus(t, status, body, http.StatusOK)
				got := mustUnmarshal[struct {
					FullName string `json:"fullName"`
					Status   string `json:"status"`
				}](t, body)
				if got.FullName != "Adama Traoré" || got.Status != "PENDING" {
					t.Fatalf("unexpected status view: %s", string(body))
				}
			}

			memberPath := "/members/" + created.Member.MemberId

			// Identifier issuance.
			var issued struct {
				Login           string `json:"login"`
				TemporarySecret string `json:"temporarySecret"`
			}
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, memberPath+"/identifier", operatorSubject, map[string]any{"confirmedPaid": true})
				requireStatus(t, status, body, http.StatusOK)
				issued = mustUnmarshal[struct {
					Login           string `json:"login"`
					TemporarySecret string `json:"temporarySecret"`
				}](t, body)
				if issued.Login != "adama.traore" || issued.TemporarySecret == "" {
					t.Fatalf("unexpected issuance: %s", string(body))
				}
			}

			// A pending member may not resubmit while under review.
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/members/me/form", issued.Login, application)
				requireErrorCode(t, status, body, http.StatusConflict, "ALREADY_PENDING_REVIEW")
			}

			// Approval assigns a form code; a second approval is refused.
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, memberPath+"/approve", operatorSubject, map[string]any{"comment": "complete file"}, "Idempotency-Key", "approve-1")
				requireStatus(t, status, body, http.StatusOK)
				got := mustUnmarshal[memberEnvelope](t, body)
				if got.Member.Status != "APPROVED" || got.Member.FormCode == nil {
					t.Fatalf("unexpected member after approval: %s", string(body))
				}

				status, _, hdr := srv.doJSON(t, http.MethodPost, memberPath+"/approve", operatorSubject, map[string]any{"comment": "complete file"}, "Idempotency-Key", "approve-1")
				requireStatus(t, status, nil, http.StatusOK)
				if hdr.Get("Idempotent-Replayed") != "true" {
					t.Fatalf("expected replayed approval")
				}

				status, body, _ = srv.doJSON(t, http.MethodPost, memberPath+"/approve", operatorSubject, nil)
				requireErrorCode(t, status, body, http.StatusConflict, "ALREADY_APPROVED")
			}

			// The member changes the temporary secret.
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/members/me/password", issued.Login, map[string]any{
					"currentPassword": issued.TemporarySecret,
					"newPassword":     "CorrectHorse9",
				})
				requireStatus(t, status, body, http.StatusNoContent)
			}

			// Amendment round trip.
			var amendmentID string
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/members/me/amendments", issued.Login, map[string]any{
					"fields":        map[string]string{"address": "Point E, rue 3"},
					"justification": "relocated with family",
				})
				requireStatus(t, status, body, http.StatusCreated)
				amendmentID = mustUnmarshal[struct {
					Amendment struct {
						AmendmentId string `json:"amendmentId"`
					} `json:"amendment"`
				}](t, body).Amendment.AmendmentId
			}
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, "/amendments/"+amendmentID+"/decision", operatorSubject, map[string]any{"decision": "APPROVED"})
				requireStatus(t, status, body, http.StatusOK)

				status, body, _ = srv.doJSON(t, http.MethodGet, "/members/me", issued.Login, nil)
				requireStatus(t, status, body, http.StatusOK)
				me := mustUnmarshal[memberEnvelope](t, body)
				if me.Member.Profile.Address != "Point E, rue 3" || me.Member.Status != "APPROVED" || me.Member.MustChangePassword {
					t.Fatalf("unexpected member after amendment: %s", string(body))
				}
			}

			// Secretaries may not deactivate accounts.
			{
				status, body, _ := srv.doJSON(t, http.MethodPost, memberPath+"/deactivate", operatorSubject, nil)
				requireErrorCode(t, status, body, http.StatusForbidden, "FORBIDDEN")
			}

			// Directory lists the approved member.
			{
				status, body, _ := srv.doJSON(t, http.MethodGet, "/directory?q=adama", "", nil)
				requireStatus(t, status, body, http.StatusOK)
				got := mustUnmarshal[struct {
					Entries []struct {
						MemberId string `json:"memberId"`
					} `json:"entries"`
				}](t, body)
				if len(got.Entries) != 1 || got.Entries[0].MemberId != created.Member.MemberId {
					t.Fatalf("unexpected directory: %s", string(body))
				}
			}

			// Audit trail, newest first.
			{
				status, body, _ := srv.doJSON(t, http.MethodGet, memberPath+"/audit", operatorSubject, nil)
				requireStatus(t, status, body, http.StatusOK)
				got := mustUnmarshal[struct {
					Entries []struct {
						Action string `json:"action"`
					} `json:"entries"`
				}](t, body)
				if len(got.Entries) < 5 || got.Entries[0].Action != "amendment.approved" {
					t.Fatalf("unexpected audit trail: %s", string(body))
				}
			}
		})
	}
}
