package main

// VERSION is the doorman release version.
const VERSION = "1.4.0"
