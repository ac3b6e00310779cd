// Package task manages background job queuing, processing, and lifecycle.
// It provides mechanisms for asynchronous execution of the email processing
// pipeline, ensuring extraction and card publishing don't block HTTP request
// handling and can recover from application restarts.
package task
