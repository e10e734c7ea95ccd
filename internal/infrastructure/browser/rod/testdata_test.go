package rod

const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	InteractiveHTML = `<!DOCTYPE html>
<html>
<head><title>Interactive</title></head>
<body>
	<button id="btn">Sign in</button>
	<input id="search" type="text" placeholder="Search" />
	<a href="#next" id="link">Next page</a>
	<div id="result"></div>
	<script>
		document.getElementById('btn').addEventListener('click', function() {
			document.getElementById('result').textContent = 'Clicked!';
		});
	</script>
</body>
</html>`

	ScrollableHTML = `<!DOCTYPE html>
<html>
<body style="height: 5000px; margin: 0;">
	<h1 id="top">Top of Page</h1>
</body>
</html>`
)
