package notifications

import (
	"fmt"
	"html"
	"time"
)

const (
	themePrimary   = "#1F3A5F"
	themeTextMain  = "#1F2937"
	themeTextMuted = "#6B7280"
	themeBgBody    = "#F3F4F6"
	themeWhite     = "#FFFFFF"
)

// EmailLayout wraps content in the shared transactional email shell.
func EmailLayout(brand, contentHTML string) string {
	year := time.Now().Year()
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s</title>
  <style>
    body { margin: 0; padding: 0; width: 100%% !important; background-color: %s; -webkit-font-smoothing: antialiased; }
    table { border-collapse: collapse; }
    body, td, p, a, li { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: %s; }
    .content-body p { margin: 0 0 24px 0; font-size: 16px; line-height: 1.6; color: #374151; }
    .content-body h1 { color: #111827; font-size: 24px; margin-top: 0; margin-bottom: 20px; font-weight: 700; }
    .content-body table.positions td { padding: 6px 12px; border-bottom: 1px solid #E5E7EB; font-size: 15px; }
    .cta-button { display: inline-block; background-color: %s; color: #ffffff !important; padding: 12px 32px; text-decoration: none !important; border-radius: 6px; font-weight: 600; font-size: 15px; }
    .footer-text { color: %s; font-size: 13px; line-height: 1.5; }
  </style>
</head>
<body style="margin: 0; padding: 0; background-color: %s;">
  <table role="presentation" width="100%%" border="0" cellspacing="0" cellpadding="0">
    <tr>
      <td align="center" style="padding: 40px 0;">
        <table role="presentation" width="600" border="0" cellspacing="0" cellpadding="0" style="width: 600px; background-color: %s; border-radius: 8px;">
          <tr>
            <td class="content-body" style="padding: 48px 48px 30px 48px;">%s</td>
          </tr>
          <tr>
            <td align="center" style="padding: 24px 48px 40px 48px;">
              <p class="footer-text" style="margin: 0;">© %d %s. This message concerns securities recorded on the books of the issuer named above.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		html.EscapeString(brand), themeBgBody, themeTextMain, themePrimary, themeTextMuted,
		themeBgBody, themeWhite, contentHTML, year, html.EscapeString(brand))
}

func shareUpdateContent(holderName, issuerName, additional, total, portalURL string) string {
	return fmt.Sprintf(`
    <h1>Your shareholding in %s has been updated</h1>
    <p>Hi %s,</p>
    <p>New shares have been recorded in your name on the books of <strong>%s</strong>.</p>
    <table class="positions">
      <tr><td>Shares added</td><td><strong>%s</strong></td></tr>
      <tr><td>Total shares held</td><td><strong>%s</strong></td></tr>
    </table>
    <center>
      <a href="%s" class="cta-button">View your holdings</a>
    </center>
`, html.EscapeString(issuerName), html.EscapeString(holderName), html.EscapeString(issuerName),
		html.EscapeString(additional), html.EscapeString(total), portalURL)
}

func invitationContent(holderName, issuerName, total, inviteLink string, expires time.Time) string {
	return fmt.Sprintf(`
    <h1>You are now a shareholder of %s</h1>
    <p>Hi %s,</p>
    <p><strong>%s</strong> shares have been recorded in your name. Create your shareholder portal account to view your position and statements.</p>
    <center>
      <a href="%s" class="cta-button">Accept invitation</a>
    </center>
    <p style="margin-top:20px;font-size:14px;color:#666;">
      This invitation link expires on %s. If you were not expecting this message, contact the issuer's transfer agent.
    </p>
`, html.EscapeString(issuerName), html.EscapeString(holderName), html.EscapeString(total), inviteLink,
		expires.UTC().Format("January 2, 2006 15:04 MST"))
}
