package notify

import "fmt"

func yourTurnSMS(name string, number int64, queueName string) string {
	return fmt.Sprintf("Hi %s! It's your turn now. Your ticket number is #%d. Please proceed to the counter. - %s", name, number, queueName)
}

func nextInLineSMS(name string, number int64, queueName string) string {
	return fmt.Sprintf("Hi %s! You're next in line. Your ticket number is #%d. Please be ready. - %s", name, number, queueName)
}

func nextInLineEmail(name string, number int64, queueName string) (string, string) {
	subject := fmt.Sprintf("You're Next! - Ticket #%d", number)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <div style="background-color: #1f2937; color: white; padding: 20px; text-align: center;">
        <h1>%s</h1>
      </div>
      <div style="background-color: #f0fdf4; padding: 30px; border: 2px solid #22c55e;">
        <p>Hi %s,</p>
        <p><strong>You're next in line!</strong></p>
        <p style="font-size: 48px; font-weight: bold; color: #16a34a; text-align: center;">#%d</p>
        <p>Please be ready to proceed to the counter. Your turn will begin shortly.</p>
        <p>Thank you for waiting!</p>
      </div>
    </div>
  </body>
</html>`, queueName, name, number)
	return subject, html
}

func thirdInLineEmail(name string, number int64, queueName string) (string, string) {
	subject := fmt.Sprintf("You're 3rd in Line - Ticket #%d", number)
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <div style="background-color: #1f2937; color: white; padding: 20px; text-align: center;">
        <h1>%s</h1>
      </div>
      <div style="background-color: #f9fafb; padding: 30px;">
        <p>Hi %s,</p>
        <p>Great news! You're getting close. You are currently <strong>3rd in line</strong>.</p>
        <p style="font-size: 48px; font-weight: bold; color: #1f2937; text-align: center;">#%d</p>
        <p>You'll receive another notification when you're next in line.</p>
        <p>Thank you for your patience!</p>
      </div>
    </div>
  </body>
</html>`, queueName, name, number)
	return subject, html
}
